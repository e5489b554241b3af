package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"google.golang.org/grpc"

	"github.com/zarvd/iothub-sas-signer/internal/key"
	"github.com/zarvd/iothub-sas-signer/internal/sas"
	"github.com/zarvd/iothub-sas-signer/internal/server"
)

type KeyFlags struct {
	PrimaryKey     string `env:"IOTHUB_PRIMARY_KEY" xor:"primary-key" required:"" help:"Base64 primary key of the shared access policy or device"`
	PrimaryKeyFile string `type:"filecontent" xor:"primary-key" required:"" help:"Path to a file holding the primary key"`
}

func (f *KeyFlags) primaryKey(keyName string) (*key.StaticKey, error) {
	if f.PrimaryKeyFile != "" {
		return key.DecodePrimaryKey(f.PrimaryKeyFile, keyName)
	}
	return key.DecodePrimaryKey(f.PrimaryKey, keyName)
}

type ServeCmd struct {
	KeyFlags `embed:""`

	UnixDomainSocket string `required:"" help:"Unix domain socket to listen on"`
	Hub              string `env:"IOTHUB_HUB_NAME" required:"" help:"Name of the hub tokens are issued for"`
	KeyName          string `default:"iothubowner" help:"Shared access policy the primary key belongs to"`
	MaxDaysValid     int    `default:"365" help:"Longest validity a caller may request, in days"`
}

func (cmd *ServeCmd) Run(ctx context.Context, logger *slog.Logger) error {
	staticKey, err := cmd.primaryKey(cmd.KeyName)
	if err != nil {
		return fmt.Errorf("failed to load primary key: %w", err)
	}
	issuer, err := key.NewInMemoryIssuer(logger, cmd.Hub, staticKey, cmd.MaxDaysValid)
	if err != nil {
		return fmt.Errorf("failed to create issuer: %w", err)
	}

	grpcServer := grpc.NewServer()
	server.RegisterTokenSignerServer(grpcServer, server.NewServer(logger, issuer))

	listener, err := net.Listen("unix", cmd.UnixDomainSocket)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer listener.Close()

	go func() {
		logger.Info("serving on", slog.String("address", listener.Addr().String()))
		if err := grpcServer.Serve(listener); err != nil {
			logger.Error("failed to serve", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	grpcServer.GracefulStop()
	logger.Info("shutting down")
	return nil
}

type IssueFlags struct {
	KeyFlags `embed:""`

	Hub       string `env:"IOTHUB_HUB_NAME" required:"" help:"Name of the hub"`
	DaysValid int    `default:"1" help:"Days from now until the token expires; may be zero or negative"`
}

type DeviceCmd struct {
	IssueFlags `embed:""`

	DeviceID string `arg:"" help:"Device identity the token is scoped to"`
}

func (cmd *DeviceCmd) Run(out io.Writer) error {
	staticKey, err := cmd.primaryKey("")
	if err != nil {
		return fmt.Errorf("failed to load primary key: %w", err)
	}
	token, err := sas.Create(sas.Device{ID: cmd.DeviceID}, staticKey.PrimaryKey, cmd.DaysValid, cmd.Hub)
	if err != nil {
		return fmt.Errorf("failed to create device token: %w", err)
	}
	_, err = fmt.Fprintln(out, token.String())
	return err
}

type ServiceCmd struct {
	IssueFlags `embed:""`

	Policy string `default:"iothubowner" help:"Shared access policy name carried as skn"`
}

func (cmd *ServiceCmd) Run(out io.Writer) error {
	staticKey, err := cmd.primaryKey(cmd.Policy)
	if err != nil {
		return fmt.Errorf("failed to load primary key: %w", err)
	}
	token, err := sas.Create(sas.Service{Policy: staticKey.KeyName}, staticKey.PrimaryKey, cmd.DaysValid, cmd.Hub)
	if err != nil {
		return fmt.Errorf("failed to create service token: %w", err)
	}
	_, err = fmt.Fprintln(out, token.String())
	return err
}

type VerifyCmd struct {
	KeyFlags `embed:""`

	Token string `arg:"" help:"Token to verify"`
}

func (cmd *VerifyCmd) Run(out io.Writer, logger *slog.Logger) error {
	staticKey, err := cmd.primaryKey("")
	if err != nil {
		return fmt.Errorf("failed to load primary key: %w", err)
	}
	token, err := sas.Parse(cmd.Token)
	if err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}
	if err := sas.Verify(token, staticKey.PrimaryKey, time.Now()); err != nil {
		return fmt.Errorf("failed to verify token: %w", err)
	}
	logger.Info("verified token", slog.String("resource", token.Resource))
	_, err = fmt.Fprintf(out, "valid until %s\n", token.ExpiresAt().Format(time.RFC3339))
	return err
}

type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Serve the token signer over gRPC"`
	Device  DeviceCmd  `cmd:"" help:"Print a device-scoped token"`
	Service ServiceCmd `cmd:"" help:"Print a hub-wide service token"`
	Verify  VerifyCmd  `cmd:"" help:"Check a token's signature and expiry"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	cliCtx := kong.Parse(&cli)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cliCtx.BindTo(ctx, (*context.Context)(nil))
	cliCtx.BindTo(os.Stdout, (*io.Writer)(nil))
	cliCtx.Bind(logger)

	if err := cliCtx.Run(); err != nil {
		logger.Error("failed to run CLI", slog.Any("error", err))
		os.Exit(1)
	}
}
