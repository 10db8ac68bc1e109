package actionflow

import (
	runtimepkg "github.com/drblury/actionflow/internal/runtime"
	configpkg "github.com/drblury/actionflow/internal/runtime/config"
	contentpkg "github.com/drblury/actionflow/internal/runtime/content"
	errspkg "github.com/drblury/actionflow/internal/runtime/errors"
	eventspkg "github.com/drblury/actionflow/internal/runtime/events"
	idspkg "github.com/drblury/actionflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/actionflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/actionflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/actionflow/internal/runtime/metadata"
	queuepkg "github.com/drblury/actionflow/internal/runtime/queue"
	resultspkg "github.com/drblury/actionflow/internal/runtime/results"
	"github.com/drblury/actionflow/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies

	Kind       = runtimepkg.Kind
	Descriptor = runtimepkg.Descriptor
	Action     = runtimepkg.Action
	ActionFunc = runtimepkg.ActionFunc
	Registry   = runtimepkg.Registry

	Executor           = runtimepkg.Executor
	ExecutorOptions    = runtimepkg.ExecutorOptions
	ActiveExecutions   = runtimepkg.ActiveExecutions
	PanicError         = runtimepkg.PanicError
	ConfigurationError = runtimepkg.ConfigurationError

	Invocation             = runtimepkg.Invocation
	ActionHandler          = runtimepkg.ActionHandler
	Middleware             = runtimepkg.Middleware
	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration

	// Job lifecycle hooks
	JobContext = runtimepkg.JobContext
	JobHooks   = runtimepkg.JobHooks

	ActionStats     = runtimepkg.ActionStats
	ActionInfo      = runtimepkg.ActionInfo
	ActionMetrics   = runtimepkg.ActionMetrics
	ErrorClassifier = runtimepkg.ErrorClassifier
	ErrorCategory   = runtimepkg.ErrorCategory

	PluginCoordinates = runtimepkg.PluginCoordinates
	PluginManifest    = runtimepkg.PluginManifest
	ActionManifest    = runtimepkg.ActionManifest
	Registrar         = runtimepkg.Registrar

	Event            = eventspkg.Event
	ActionContext    = eventspkg.ActionContext
	DeltaFileMessage = eventspkg.DeltaFileMessage
	Domain           = eventspkg.Domain
	Enrichment       = eventspkg.Enrichment

	ExpectedContentError       = eventspkg.ExpectedContentError
	MissingDomainError         = eventspkg.MissingDomainError
	MissingEnrichmentError     = eventspkg.MissingEnrichmentError
	MissingMetadataError       = eventspkg.MissingMetadataError
	MissingSourceMetadataError = eventspkg.MissingSourceMetadataError
	ParameterError             = eventspkg.ParameterError

	Content             = contentpkg.Content
	Segment             = contentpkg.Segment
	Storage             = contentpkg.Storage
	MemoryStorage       = contentpkg.MemoryStorage
	MissingContentError = contentpkg.MissingContentError

	Result     = resultspkg.Result
	ResultType = resultspkg.Type
	Metric     = resultspkg.Metric
	Envelope   = resultspkg.Envelope

	DomainResult     = resultspkg.DomainResult
	EgressResult     = resultspkg.EgressResult
	EnrichResult     = resultspkg.EnrichResult
	ErrorResult      = resultspkg.ErrorResult
	FilterResult     = resultspkg.FilterResult
	FormatResult     = resultspkg.FormatResult
	FormatManyResult = resultspkg.FormatManyResult
	LoadResult       = resultspkg.LoadResult
	LoadManyResult   = resultspkg.LoadManyResult
	ReinjectResult   = resultspkg.ReinjectResult
	TransformResult  = resultspkg.TransformResult
	ValidateResult   = resultspkg.ValidateResult

	QueueClient     = queuepkg.Client
	ActionExecution = queuepkg.ActionExecution

	TransportBuilder = transport.Builder
	TransportConfig  = transport.Config

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError
)

// Action kinds.
const (
	KindTransform = runtimepkg.KindTransform
	KindLoad      = runtimepkg.KindLoad
	KindDomain    = runtimepkg.KindDomain
	KindEnrich    = runtimepkg.KindEnrich
	KindFormat    = runtimepkg.KindFormat
	KindValidate  = runtimepkg.KindValidate
	KindEgress    = runtimepkg.KindEgress
)

// Error category constants for ErrorClassifier.
const (
	ErrorCategoryNone          = runtimepkg.ErrorCategoryNone
	ErrorCategoryLookup        = runtimepkg.ErrorCategoryLookup
	ErrorCategoryParameters    = runtimepkg.ErrorCategoryParameters
	ErrorCategoryConfiguration = runtimepkg.ErrorCategoryConfiguration
	ErrorCategoryCanceled      = runtimepkg.ErrorCategoryCanceled
	ErrorCategoryOther         = runtimepkg.ErrorCategoryOther
)

var (
	NewService     = runtimepkg.NewService
	ValidateConfig = configpkg.ValidateConfig
	ConfigFromEnv  = configpkg.FromEnv
	LoadConfigFile = configpkg.LoadFile

	NewAction      = runtimepkg.NewAction
	RegisterAction = runtimepkg.RegisterAction
	NewRegistry    = runtimepkg.NewRegistry
	NewExecutor    = runtimepkg.NewExecutor
	FaultCause     = runtimepkg.FaultCause

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	TracerMiddleware        = runtimepkg.TracerMiddleware
	LogExecutionsMiddleware = runtimepkg.LogExecutionsMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	StatsMiddleware         = runtimepkg.StatsMiddleware

	// Job lifecycle hooks
	JobHooksMiddleware = runtimepkg.JobHooksMiddleware
	LoggingHooks       = runtimepkg.LoggingHooks
	MetricsHooks       = runtimepkg.MetricsHooks
	AlertingHooks      = runtimepkg.AlertingHooks

	NewActionMetrics = runtimepkg.NewActionMetrics
	BuildManifest    = runtimepkg.BuildManifest

	// Result constructors and builders
	NewError         = resultspkg.NewError
	NewFilter        = resultspkg.NewFilter
	NewEgress        = resultspkg.NewEgress
	NewValidate      = resultspkg.NewValidate
	NewMetric        = resultspkg.NewMetric
	NewDomain        = resultspkg.NewDomain
	NewEnrich        = resultspkg.NewEnrich
	NewFormat        = resultspkg.NewFormat
	NewFormatMany    = resultspkg.NewFormatMany
	NewLoad          = resultspkg.NewLoad
	NewLoadMany      = resultspkg.NewLoadMany
	NewReinject      = resultspkg.NewReinject
	NewTransform     = resultspkg.NewTransform
	NewTransformMany = resultspkg.NewTransformMany
	CheckResult      = resultspkg.Validate

	NewContent       = contentpkg.New
	ConcatContent    = contentpkg.Concat
	SaveContent      = contentpkg.Save
	LoadContent      = contentpkg.Load
	NewMemoryStorage = contentpkg.NewMemoryStorage

	ResponseTopicFor = queuepkg.ResponseTopicFor

	RegisterTransport = transport.Register

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal

	ErrServiceRequired    = errspkg.ErrServiceRequired
	ErrActionRequired     = errspkg.ErrActionRequired
	ErrActionNameRequired = errspkg.ErrActionNameRequired
	ErrDuplicateAction    = errspkg.ErrDuplicateAction
	ErrUnknownActionKind  = errspkg.ErrUnknownActionKind
	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired
	ErrNilResult          = errspkg.ErrNilResult
	ErrIncompatibleResult = errspkg.ErrIncompatibleResult
	ErrEmptyContent       = errspkg.ErrEmptyContent
	ErrAlreadyStarted     = errspkg.ErrAlreadyStarted

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewJSONServiceLogger = loggingpkg.NewJSONServiceLogger
	NewNopServiceLogger  = loggingpkg.NewNopServiceLogger

	NewMetadata = metadatapkg.New

	NewDid = idspkg.NewDid
)

// DecodeParams decodes the event parameters into T.
func DecodeParams[T any](ev Event) (T, error) {
	return eventspkg.DecodeParams[T](ev)
}
