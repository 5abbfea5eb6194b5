package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del núcleo de autenticación. Paquete aparte para que middleware y casos de uso
// las compartan sin ciclos de import.

// Outcomes usados como label.
const (
	OutcomeSuccess   = "success"
	OutcomeInvalid   = "invalid"
	OutcomeMissing   = "missing"
	OutcomeForbidden = "forbidden"
	OutcomeError     = "error"
)

var (
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinica_auth_login_attempts_total",
		Help: "Intentos de login por resultado",
	}, []string{"outcome"})

	TokenVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinica_auth_token_verifications_total",
		Help: "Verificaciones de bearer token en el middleware por resultado",
	}, []string{"outcome"})

	AuthorizationDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinica_auth_authorization_denials_total",
		Help: "Peticiones con token válido rechazadas con 403, por gate",
	}, []string{"gate"})

	AccessCodeLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinica_auth_access_code_lookups_total",
		Help: "Resolución de Access Code List por origen (cache, db, error)",
	}, []string{"source"})
)

// Register registra las métricas en reg (o en el default si es nil).
// Registrar dos veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{LoginAttempts, TokenVerifications, AuthorizationDenials, AccessCodeLookups} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
