package actiontest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/actionflow/internal/runtime/content"
	"github.com/drblury/actionflow/internal/runtime/results"
)

// RequireResult fails the test unless r is a T and returns it.
func RequireResult[T results.Result](t testing.TB, r results.Result) T {
	t.Helper()
	out, ok := r.(T)
	if !ok {
		var want T
		detail := ""
		if er, isErr := r.(results.ErrorResult); isErr {
			detail = ": " + er.Cause()
		}
		require.FailNowf(t, "unexpected result", "want %T, got %T%s", want, r, detail)
	}
	return out
}

// AssertErrorCause checks that r is an error result with the given cause.
func AssertErrorCause(t testing.TB, r results.Result, cause string) bool {
	t.Helper()
	er := RequireResult[results.ErrorResult](t, r)
	return assert.Equal(t, cause, er.Cause())
}

// AssertFilter checks that r is a filter result with the given message.
func AssertFilter(t testing.TB, r results.Result, message string) bool {
	t.Helper()
	f := RequireResult[results.FilterResult](t, r)
	return assert.Equal(t, message, f.Message())
}

// AssertMetric checks that r carries a metric with the given name and value.
func AssertMetric(t testing.TB, r results.Result, name string, value int64) bool {
	t.Helper()
	for _, m := range r.Metrics() {
		if m.Name == name {
			return assert.Equal(t, value, m.Value, "metric %s", name)
		}
	}
	return assert.Failf(t, "metric not found", "no metric named %s in %v", name, r.Metrics())
}

// LoadString reads c back from st.
func LoadString(t testing.TB, st content.Storage, c content.Content) string {
	t.Helper()
	data, err := content.Load(context.Background(), st, c)
	require.NoError(t, err, "load content %s", c.Name)
	return string(data)
}
