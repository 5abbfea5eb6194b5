package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jhoicas/clinica-suite/internal/client/guard"
	"github.com/jhoicas/clinica-suite/internal/client/relay"
	"github.com/jhoicas/clinica-suite/internal/client/session"
	"github.com/jhoicas/clinica-suite/internal/client/storage"
	"github.com/jhoicas/clinica-suite/pkg/config"
	"github.com/jhoicas/clinica-suite/pkg/jwt"
	"github.com/spf13/cobra"
)

var errNoSession = errors.New("no hay sesión activa")

// sessionView forma impresa de una sesión.
type sessionView struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	FullName    string    `json:"full_name,omitempty"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func newSessionView(s *session.Session) sessionView {
	return sessionView{
		ID:          s.ID,
		Username:    s.Username,
		FullName:    s.FullName,
		Role:        s.Role,
		Permissions: s.Permissions.Slice(),
		ExpiresAt:   s.ExpiresAt,
	}
}

func (v sessionView) text() string {
	return fmt.Sprintf("%s (%s) rol=%s permisos=[%s] expira=%s",
		v.Username, v.ID, v.Role, strings.Join(v.Permissions, ","), v.ExpiresAt.Local().Format(time.RFC3339))
}

func (a *app) print(v any, text string) error {
	if a.out == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Println(text)
	return nil
}

// protected inicializa el Provider y ejecuta run bajo el guard. Sin sesión el guard
// indica el login del portal con la URL actual como retorno y el comando falla.
func (a *app) protected(cmd *cobra.Command, run func(*session.Session) error) error {
	a.provider.Init(cmd.Context())
	var err error
	switch a.guard.Protect(func(s *session.Session) { err = run(s) }) {
	case guard.DecisionRender:
		return err
	default:
		return errNoSession
	}
}

func (a *app) loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Iniciar sesión y guardar el token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("--username es requerido")
			}
			if password == "" {
				password = os.Getenv("CLINICCTL_PASSWORD")
			}
			if password == "" {
				return fmt.Errorf("--password o CLINICCTL_PASSWORD es requerido")
			}
			a.provider.Init(cmd.Context())
			sess, err := a.provider.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			v := newSessionView(sess)
			return a.print(v, "Sesión iniciada: "+v.text())
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Usuario")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (o env CLINICCTL_PASSWORD)")
	return cmd
}

func (a *app) whoamiCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Mostrar la sesión actual",
		Long: "Sin --remote la sesión se deriva del token local sin verificar la firma (sólo informativo).\n" +
			"Con --remote el servidor verifica el token.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.protected(cmd, func(sess *session.Session) error {
				if !remote {
					v := newSessionView(sess)
					return a.print(v, v.text())
				}
				token, _, err := a.durable.Get(cmd.Context(), storage.TokenKey)
				if err != nil {
					return err
				}
				me, err := a.api.Me(cmd.Context(), token)
				if err != nil {
					return err
				}
				return a.print(me, fmt.Sprintf("%s (%s) rol=%s permisos=[%s] verificado por el servidor",
					me.Username, me.ID, me.Role, strings.Join(me.Permissions, ",")))
			})
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Verificar la sesión contra la API")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Cerrar sesión y borrar el token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.provider.Logout(cmd.Context())
			return nil
		},
	}
}

func (a *app) handoffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "handoff <url-destino>",
		Short: "Generar la URL para abrir otra app con la sesión actual",
		Long: "La URL incluye el token como parámetro ?token=. Queda en el historial del navegador\n" +
			"y puede filtrarse por la cabecera Referer: compártala sólo con el propio navegador.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.protected(cmd, func(*session.Session) error {
				token, _, err := a.durable.Get(cmd.Context(), storage.TokenKey)
				if err != nil {
					return err
				}
				target, err := relay.HandoffURL(args[0], token)
				if err != nil {
					return err
				}
				return a.print(map[string]string{"url": target}, target)
			})
		},
	}
}

func (a *app) accessCodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "access-codes",
		Short: "Listar los access codes del usuario actual (resueltos por el servidor)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.protected(cmd, func(*session.Session) error {
				token, _, err := a.durable.Get(cmd.Context(), storage.TokenKey)
				if err != nil {
					return err
				}
				codes, err := a.api.AccessCodes(cmd.Context(), token)
				if err != nil {
					return err
				}
				return a.print(codes, strings.Join(codes.Codes, "\n"))
			})
		},
	}
}

// tokenCmd utilidades de desarrollo; no requieren sesión.
func tokenCmd(cfg *config.Config) *cobra.Command {
	tokenRoot := &cobra.Command{
		Use:   "token",
		Short: "Utilidades sobre tokens",
		// No necesita storage ni API.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}

	decode := &cobra.Command{
		Use:   "decode <token>",
		Short: "Decodificar un token SIN verificar la firma",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := jwt.Decode(args[0])
			if err != nil {
				return err
			}
			expired := claims.ExpiredAt(time.Now())
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"verified":   false,
				"sub":        claims.UserID(),
				"username":   claims.Username(),
				"full_name":  claims.FullName(),
				"role":       claims.Role(),
				"iss":        claims.Issuer(),
				"issued_at":  claims.IssuedAt(),
				"expires_at": claims.ExpiresAt(),
				"expired":    expired,
			})
		},
	}

	var (
		secret = cfg.JWT.Secret
		issuer = cfg.JWT.Issuer
		ttl    = cfg.JWT.TTL()
	)
	var subject jwt.Subject
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Emitir un token firmado (desarrollo; requiere el secreto del servidor)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject.ID == "" || subject.Username == "" || subject.Role == "" {
				return fmt.Errorf("--sub, --username y --role son requeridos")
			}
			tok, err := jwt.Issue(subject, secret, ttl, jwt.WithIssuer(issuer))
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	issue.Flags().StringVar(&secret, "secret", secret, "Secreto HS256 (env JWT_SECRET)")
	issue.Flags().StringVar(&issuer, "issuer", issuer, "Emisor (env JWT_ISSUER)")
	issue.Flags().DurationVar(&ttl, "ttl", ttl, "Vigencia del token")
	issue.Flags().StringVar(&subject.ID, "sub", "", "ID del usuario")
	issue.Flags().StringVar(&subject.Username, "username", "", "Username")
	issue.Flags().StringVar(&subject.FullName, "full-name", "", "Nombre completo")
	issue.Flags().StringVar(&subject.Role, "role", "", "Rol")

	tokenRoot.AddCommand(decode, issue)
	return tokenRoot
}
