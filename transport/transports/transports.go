// Package transports imports every built-in broker transport so each one
// registers itself with transport.DefaultRegistry. Import it for its side
// effects when the QueueSystem is chosen at deploy time.
package transports

import (
	_ "github.com/drblury/actionflow/transport/aws"
	_ "github.com/drblury/actionflow/transport/channel"
	_ "github.com/drblury/actionflow/transport/http"
	_ "github.com/drblury/actionflow/transport/jetstream"
	_ "github.com/drblury/actionflow/transport/kafka"
	_ "github.com/drblury/actionflow/transport/nats"
	_ "github.com/drblury/actionflow/transport/rabbitmq"
)
