// Command watsh is a CLI client for the watsh service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	grpcserver "github.com/watsh-io/backend/internal/server/grpc"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const callTimeout = 30 * time.Second

// cli carries the loaded profile into every command.
type cli struct {
	dir     string
	v       *viper.Viper
	connect connector
}

func (c *cli) opts(withToken bool) (dialOpts, error) {
	o := dialOpts{
		addr:      c.v.GetString(keyAddr),
		caPath:    c.v.GetString(keyCACert),
		insecure:  c.v.GetBool(keyInsecure),
		plaintext: c.v.GetBool(keyPlaintext),
	}
	if withToken {
		tok, err := loadToken(c.v)
		if err != nil {
			return o, err
		}
		o.token = tok
	}
	return o, nil
}

// client connects and returns a service client plus its closer.
func (c *cli) client(ctx context.Context, withToken bool) (*grpcserver.Client, func(), error) {
	o, err := c.opts(withToken)
	if err != nil {
		return nil, nil, err
	}
	cc, err := c.connect(ctx, o)
	if err != nil {
		return nil, nil, err
	}
	return grpcserver.NewClient(cc), func() { _ = cc.Close() }, nil
}

// call runs one unary method with a timeout.
func (c *cli) call(cmd *cobra.Command, method string, req map[string]any, withToken bool) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()
	cl, closeFn, err := c.client(ctx, withToken)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return cl.Call(ctx, method, req)
}

func readAll(in io.Reader, p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(in)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(connect connector) *cobra.Command {
	c := &cli{connect: connect}

	root := &cobra.Command{
		Use:           "watsh",
		Short:         "watsh is a client for the watsh configuration service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := loadProfile(c.dir)
			if err != nil {
				return fmt.Errorf("load profile: %w", err)
			}
			for _, k := range []string{keyAddr, keyCACert, keyInsecure, keyPlaintext} {
				if err := v.BindPFlag(k, cmd.Root().PersistentFlags().Lookup(k)); err != nil {
					return err
				}
			}
			c.v = v
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.dir, "config-dir", cfgDir(), "profile directory")
	pf.String(keyAddr, "localhost:8443", "server addr")
	pf.String(keyCACert, "", "CA cert (PEM)")
	pf.Bool(keyInsecure, false, "skip cert verify (dev)")
	pf.Bool(keyPlaintext, false, "disable TLS (dev)")

	root.AddCommand(
		versionCmd(),
		signupCmd(c),
		acceptCmd(c),
		logoutCmd(c),
		meCmd(c),
		callCmd(c),
		snapshotCmd(c),
		schemaCmd(c),
		importCmd(c),
		watchCmd(c),
	)
	return root
}

// main dispatches subcommands and configures TLS/auth for RPC calls.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(dial).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
