package cmd

import (
	"bytes"
	"crypto/x509"
	"io"
	"strings"

	"github.com/octopilot/certstore/internal/certificate"
	"github.com/octopilot/certstore/internal/config"
	"github.com/octopilot/certstore/internal/truststore"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newStore builds the Store used by every command. Tests replace it.
var newStore = func(cfg truststore.Config, log *zap.Logger) *truststore.Store {
	return truststore.New(cfg, truststore.WithLogger(log))
}

// Execute runs the certstore command tree.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "certstore",
		Short: "Manage trusted root certificates.",
		Long: `Install, delete and inspect root certificates in the operating system trust store.
Linux uses a certificate directory plus update-ca-certificates, Windows the
user root store via certutil, macOS the system keychain via security.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/"+config.Filename+")")
	flags.String("platform", "", "trust store platform: auto, linux, windows, darwin")
	flags.String("cert-dir", "", "directory for Linux root certificates")
	flags.String("keychain", "", "macOS keychain to install into")
	flags.String("temp-dir", "", "directory for temporary certificate files")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	_ = viper.BindPFlag(config.KeyPlatform, flags.Lookup("platform"))
	_ = viper.BindPFlag(config.KeyLinuxCertDir, flags.Lookup("cert-dir"))
	_ = viper.BindPFlag(config.KeyKeychain, flags.Lookup("keychain"))
	_ = viper.BindPFlag(config.KeyTempDir, flags.Lookup("temp-dir"))
	_ = viper.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))

	rootCmd.AddCommand(newInstallCmd(), newDeleteCmd(), newStatusCmd(), newVersionCmd())
	return rootCmd
}

// storeFor loads configuration for cmd and returns a ready Store.
func storeFor(cmd *cobra.Command) (*truststore.Store, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	log.Debug("configuration loaded",
		zap.String("platform", cfg.Platform),
		zap.String("cert_dir", cfg.LinuxCertDir),
		zap.String("keychain", cfg.Keychain))
	return newStore(cfg.Store(), log), nil
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

// certificateArg turns the positional argument into a certificate input:
// "-" reads stdin, PEM text is used inline, anything else is a path.
// A non-empty serial wraps it in a Descriptor.
func certificateArg(cmd *cobra.Command, arg string) (certificate.Input, error) {
	in := certificate.FromString(arg)
	if arg == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, errors.Wrap(err, "reading certificate from stdin")
		}
		if in, err = stdinInput(data); err != nil {
			return nil, err
		}
	}

	serial, _ := cmd.Flags().GetString("serial")
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return in, nil
	}
	d := certificate.Descriptor{SerialNumber: serial}
	switch v := in.(type) {
	case certificate.Path:
		d.Path = string(v)
	case certificate.PEM:
		d.PEM = string(v)
	case certificate.Parsed:
		d.PEM = certificate.X509Codec{}.ToPEM(v.Certificate)
	}
	return d, nil
}

// stdinInput classifies certificate bytes read from stdin. Anything that is
// not PEM text must be DER.
func stdinInput(data []byte) (certificate.Input, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return certificate.PEM(""), nil
	}
	if certificate.IsPEM(string(data)) {
		return certificate.PEM(data), nil
	}
	cert, err := x509.ParseCertificate(data)
	if err != nil {
		return nil, errors.Wrapf(certificate.ErrInvalidCertificate, "stdin: %v", err)
	}
	return certificate.Parsed{Certificate: cert}, nil
}

// describe renders an argument for progress output.
func describe(arg string) string {
	if arg == "-" || certificate.IsPEM(arg) {
		return "certificate"
	}
	return arg
}

func addSerialFlag(cmd *cobra.Command) {
	cmd.Flags().String("serial", "", "serial number (hex) identifying the certificate")
}
