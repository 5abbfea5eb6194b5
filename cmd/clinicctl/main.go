// clinicctl cliente de línea de comandos de la autenticación compartida:
// inicia y cierra sesión, muestra la sesión actual y genera URLs de traspaso entre apps.
package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/jhoicas/clinica-suite/internal/client/apiclient"
	"github.com/jhoicas/clinica-suite/internal/client/guard"
	"github.com/jhoicas/clinica-suite/internal/client/session"
	"github.com/jhoicas/clinica-suite/internal/client/storage"
	"github.com/jhoicas/clinica-suite/pkg/config"
	"github.com/jhoicas/clinica-suite/pkg/logger"
	"github.com/spf13/cobra"
)

// cliNavigator la "URL visible" de la CLI es la que se pasa con --url (por defecto cli://clinicctl/).
// Redirect no navega: informa al operador a dónde ir.
type cliNavigator struct {
	current *url.URL
	out     io.Writer
}

func (n *cliNavigator) Current() *url.URL  { return n.current }
func (n *cliNavigator) Replace(u *url.URL) { n.current = u }
func (n *cliNavigator) Redirect(target string) {
	fmt.Fprintf(n.out, "Inicie sesión en: %s\n", target)
}

type app struct {
	cfg      *config.Config
	log      *logger.Logger
	durable  storage.Store
	api      *apiclient.Client
	nav      *cliNavigator
	provider *session.Provider
	guard    *guard.Guard
	out      string // text | json
}

// wire arma Provider y Guard sobre el storage, la navegación y la API ya construidos.
func (a *app) wire(durable storage.Store, nav *cliNavigator, api *apiclient.Client) {
	a.durable = durable
	a.nav = nav
	a.api = api
	a.provider = session.NewProvider(session.Deps{
		Durable:   durable,
		Ephemeral: storage.NewMemory(),
		Auth:      api,
		Nav:       nav,
	}, session.Config{
		LoginPath: a.cfg.Portal.LoginPath,
		LoginURL:  a.cfg.Portal.LoginURL(),
	}, session.WithLogger(a.log.Component("session")), session.WithIssuer(a.cfg.JWT.Issuer))
	a.guard = guard.New(a.provider, nav, a.cfg.Portal.LoginURL())
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(1)
	}

	var (
		apiURL     = cfg.Client.APIBaseURL
		driver     = cfg.Client.Storage
		stateDir   = cfg.Client.StateDir
		currentURL = "cli://clinicctl/"
		out        = "text"
	)
	a := &app{cfg: cfg}

	root := &cobra.Command{
		Use:           "clinicctl",
		Short:         "CLI de sesión para la suite de la clínica",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = out
			a.log = logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Output: os.Stderr})
			timeout := time.Duration(cfg.Client.Timeout) * time.Second

			durable, err := storage.New(storage.Config{
				Driver:    driver,
				Dir:       stateDir,
				RedisAddr: cfg.Cache.RedisAddr,
				RedisDB:   cfg.Cache.RedisDB,
				Prefix:    "clinicctl:",
				Timeout:   timeout,
			})
			if err != nil {
				return err
			}
			u, err := url.Parse(currentURL)
			if err != nil {
				return fmt.Errorf("--url inválida: %w", err)
			}
			api := apiclient.New(apiURL, apiclient.WithTimeout(timeout), apiclient.WithLogger(a.log.Component("apiclient")))
			a.wire(durable, &cliNavigator{current: u, out: os.Stdout}, api)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&apiURL, "api-url", apiURL, "URL base de la API (env CLIENT_API_BASE_URL)")
	root.PersistentFlags().StringVar(&driver, "storage", driver, "Almacenamiento durable: file|redis (env CLIENT_STORAGE)")
	root.PersistentFlags().StringVar(&stateDir, "state-dir", stateDir, "Directorio del almacenamiento file (env CLIENT_STATE_DIR)")
	root.PersistentFlags().StringVar(&currentURL, "url", currentURL, "URL visible actual; si trae ?token= se consume")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	root.AddCommand(
		a.loginCmd(),
		a.whoamiCmd(),
		a.logoutCmd(),
		a.handoffCmd(),
		a.accessCodesCmd(),
		tokenCmd(cfg),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
