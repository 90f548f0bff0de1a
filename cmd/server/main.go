package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"blanks/internal/cards"
	"blanks/internal/config"
	"blanks/internal/game"
	"blanks/internal/httpapi"
	"blanks/internal/users"
	"blanks/internal/users/migrations"
	"blanks/internal/ws"
	staticserver "blanks/static"
)

const version = "1.0.0"

func main() {
	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BLANKS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "blanks",
		Short:         "A real-time fill-in-the-blank party card game.",
		Args:          cobra.ExactArgs(0),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: BLANKS_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: BLANKS_PORT)")
	fs.StringVarP(&cfg.Domain, "domain", "d", "", "domain used when setting identity cookies (env: BLANKS_DOMAIN)")
	fs.StringVar(&cfg.CardsPath, "cards", "cards.json", "path to the card definitions file (env: BLANKS_CARDS)")
	fs.StringVarP(&cfg.CustomCards, "custom-cards", "c", "", "path to a custom cards overlay file (env: BLANKS_CUSTOM_CARDS)")
	fs.StringVar(&cfg.DBPath, "db", "blanks.db", "path to the user database (env: BLANKS_DB)")
	fs.IntVar(&cfg.MaxHandSize, "max-hand", game.DefaultMaxHandSize, "cards dealt to each player's hand (env: BLANKS_MAX_HAND)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "enable debug logging (env: BLANKS_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("blanks v{{.Version}}\n")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	zerologlog.Info().
		Int("packs", len(catalog.Packs)).
		Int("prompts", len(catalog.Prompts)).
		Int("responses", len(catalog.Responses)).
		Msg("catalog loaded")

	db, err := users.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	store := users.NewStore(db)

	g := game.New(catalog, cfg.MaxHandSize)

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		status := c.Writer.Status()
		dur := time.Since(start)
		zerologlog.Info().Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	})

	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	sock := ws.New(g, directory{store})
	io := sock.Mount(r)
	defer io.Close()

	api := &httpapi.API{
		Game:    g,
		Users:   store,
		WS:      sock,
		Catalog: catalog,
		Domain:  cfg.Domain,
		BaseURL: baseURL(cfg),
	}
	api.Register(r)

	// Serve frontend (if embedded build is present) for all other routes
	r.NoRoute(func(c *gin.Context) {
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	addr := cfg.Bind + ":" + strconv.Itoa(cfg.Port)
	zerologlog.Info().Str("addr", addr).Msg("listening")
	return r.Run(addr)
}

func loadCatalog(cfg *config.Config) (*cards.Catalog, error) {
	raw, err := os.ReadFile(cfg.CardsPath)
	if err != nil {
		return nil, fmt.Errorf("reading cards file: %w", err)
	}
	if cfg.CustomCards != "" {
		overlay, err := os.ReadFile(cfg.CustomCards)
		if err != nil {
			return nil, fmt.Errorf("reading custom cards file: %w", err)
		}
		raw, err = cards.Merge(raw, overlay)
		if err != nil {
			return nil, err
		}
	}
	return cards.Load(raw)
}

func baseURL(cfg *config.Config) string {
	if cfg.Domain != "" {
		return "http://" + cfg.Domain
	}
	return "http://localhost:" + strconv.Itoa(cfg.Port)
}

// directory adapts the users store to the identity lookups the socket layer
// performs on join.
type directory struct {
	store *users.Store
}

func (d directory) Lookup(ctx context.Context, id string) (game.Profile, error) {
	u, err := d.store.Get(ctx, id)
	if err != nil {
		return game.Profile{}, err
	}
	return game.Profile{Nick: u.Nick, Avatar: u.Avatar}, nil
}
