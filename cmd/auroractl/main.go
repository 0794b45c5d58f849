package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"aurora/pkg/auth"
	"aurora/pkg/auth/jwt"
	"aurora/pkg/config"

	"gopkg.in/yaml.v3"
)

const secretKeyEnv = "AURORA_SECRET_KEY"

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file")
		command    = flag.String("cmd", "get", "Command: get, set, keys, watch, validate, token")
		key        = flag.String("key", "", "Configuration key as section.key")
		value      = flag.String("value", "", "Configuration value")
		format     = flag.String("format", "yaml", "Output format (json, yaml)")
		subject    = flag.String("subject", "auroractl", "Token subject")
		role       = flag.String("role", auth.RoleOperator, "Token role (viewer, operator)")
		ttl        = flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store, err := config.Load(*configFile, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	switch *command {
	case "get":
		err = cmdGet(os.Stdout, store, *key, *format)
	case "set":
		err = cmdSet(os.Stdout, store, *key, *value)
	case "keys":
		err = cmdKeys(os.Stdout, store, *format)
	case "watch":
		err = cmdWatch(os.Stdout, store, logger)
	case "validate":
		err = cmdValidate(os.Stdout, store)
	case "token":
		err = cmdToken(os.Stdout, store, logger, *subject, *role, *ttl)
	default:
		err = fmt.Errorf("unknown command: %s", *command)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func splitKey(qualified string) (string, string, error) {
	section, key, ok := strings.Cut(qualified, ".")
	if !ok || section == "" || key == "" {
		return "", "", fmt.Errorf("key must be section.key, got %q", qualified)
	}
	return section, key, nil
}

func cmdGet(w io.Writer, store *config.Store, qualified, format string) error {
	if qualified == "" {
		return printOutput(w, store.Snapshot(), format)
	}
	section, key, err := splitKey(qualified)
	if err != nil {
		return err
	}
	value, err := store.Get(section, key)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}
	return printOutput(w, map[string]interface{}{qualified: value}, format)
}

// cmdSet parses value as JSON first so that numbers and booleans keep
// their type.
func cmdSet(w io.Writer, store *config.Store, qualified, value string) error {
	section, key, err := splitKey(qualified)
	if err != nil {
		return err
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}
	if f, ok := parsed.(float64); ok && f == float64(int(f)) {
		parsed = int(f)
	}
	if err := store.Set(section, key, parsed); err != nil {
		return fmt.Errorf("failed to set config: %w", err)
	}
	if err := store.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(w, "Config %s set successfully\n", qualified)
	return nil
}

func cmdKeys(w io.Writer, store *config.Store, format string) error {
	return printOutput(w, store.Keys(), format)
}

func cmdValidate(w io.Writer, store *config.Store) error {
	if err := store.ValidateAll(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	fmt.Fprintln(w, "Configuration is valid")
	return nil
}

func cmdWatch(w io.Writer, store *config.Store, logger *slog.Logger) error {
	watcher := config.NewFileWatcher(logger)
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	err := watcher.Watch(store.Path(), func() {
		if err := store.Reload(); err != nil {
			fmt.Fprintf(w, "Config invalid: %v\n", err)
			return
		}
		fmt.Fprintf(w, "Config reloaded from %s\n", store.Path())
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Watching %s, press Ctrl+C to stop\n", store.Path())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	return nil
}

// cmdToken mints a control API token signed with the daemon's key.
func cmdToken(w io.Writer, store *config.Store, logger *slog.Logger, subject, role string, ttl time.Duration) error {
	settings, err := store.Settings()
	if err != nil {
		return err
	}
	secrets, err := config.OpenSecretStore(settings, os.Getenv(secretKeyEnv), logger)
	if err != nil {
		return fmt.Errorf("failed to open secret store: %w", err)
	}
	return mintToken(w, secrets, settings.TokenIssuer, subject, role, ttl)
}

func mintToken(w io.Writer, secrets config.SecretStore, issuer, subject, role string, ttl time.Duration) error {
	if role != auth.RoleViewer && role != auth.RoleOperator {
		return fmt.Errorf("unknown role %q", role)
	}
	secret, err := jwt.LoadSigningSecret(secrets)
	if err != nil {
		return err
	}
	provider, err := jwt.NewJWTProvider(&jwt.JWTConfig{Name: "jwt", SecretKey: secret, Issuer: issuer})
	if err != nil {
		return err
	}
	token, expiresAt, err := provider.Issue(subject, []string{role}, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n", token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}

func printOutput(w io.Writer, data interface{}, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	}
}
