// Package discovery registers the service with consul so the gateway can
// find it.
package discovery

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/consul/api"
	"github.com/rs/zerolog"
)

// Registrar registers and deregisters a service instance with the local
// consul agent.
type Registrar struct {
	client    *api.Client
	serviceID string
	logger    *zerolog.Logger
}

// NewRegistrar creates a new Registrar talking to the consul agent at addr.
func NewRegistrar(addr string, logger *zerolog.Logger) (*Registrar, error) {
	cfg := api.DefaultConfig()
	cfg.Address = addr

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return &Registrar{
		client: client,
		logger: logger,
	}, nil
}

// Register registers this instance under a unique service id with an HTTP
// health check.
func (r *Registrar) Register(serviceName, host string, port int, healthURL string) error {
	r.serviceID = fmt.Sprintf("%s-%s", serviceName, uuid.NewString())

	registration := &api.AgentServiceRegistration{
		ID:      r.serviceID,
		Name:    serviceName,
		Address: host,
		Port:    port,
		Check: &api.AgentServiceCheck{
			HTTP:                           healthURL,
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	if err := r.client.Agent().ServiceRegister(registration); err != nil {
		return err
	}

	r.logger.Info().Str("service_id", r.serviceID).Msg("registered with consul")
	return nil
}

// Deregister removes the instance from consul. Failures are logged only;
// consul will eventually drop the instance through the critical check.
func (r *Registrar) Deregister() {
	if r.serviceID == "" {
		return
	}

	if err := r.client.Agent().ServiceDeregister(r.serviceID); err != nil {
		r.logger.Error().Err(err).Msg("failed to deregister from consul")
		return
	}

	r.logger.Info().Str("service_id", r.serviceID).Msg("deregistered from consul")
}
