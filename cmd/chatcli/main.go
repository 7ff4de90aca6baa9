package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"adgpt-backend/internal/client"
	"adgpt-backend/internal/logger"
)

type options struct {
	server   string
	email    string
	password string
	name     string
	register bool
	timeout  time.Duration
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "chatcli",
		Short: "Interactive terminal client for the AdGPT backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVar(&opts.server, "server", envOr("ADGPT_SERVER", "http://localhost:8080"), "backend base URL")
	f.StringVar(&opts.email, "email", os.Getenv("ADGPT_EMAIL"), "account email")
	f.StringVar(&opts.password, "password", os.Getenv("ADGPT_PASSWORD"), "account password")
	f.StringVar(&opts.name, "name", "", "display name, used with --register")
	f.BoolVar(&opts.register, "register", false, "create the account before logging in")
	f.DurationVar(&opts.timeout, "timeout", 90*time.Second, "per-request timeout")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(ctx context.Context, opts *options, in io.Reader, out io.Writer) error {
	log, err := logger.New(opts.logLevel, "console")
	if err != nil {
		return err
	}

	api := client.NewAPI(opts.server, opts.timeout)
	if opts.register {
		name := opts.name
		if name == "" {
			name = strings.SplitN(opts.email, "@", 2)[0]
		}
		if err := api.Register(ctx, name, opts.email, opts.password); err != nil {
			return fmt.Errorf("register: %w", err)
		}
	}
	auth, err := api.Login(ctx, opts.email, opts.password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	fmt.Fprintf(out, "Logged in as %s\n", auth.User.Name)

	sess := client.NewSession(api, log)
	return startREPL(ctx, sess, in, out)
}

func startREPL(ctx context.Context, sess *client.Session, in io.Reader, out io.Writer) error {
	if err := sess.Load(ctx); err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	r := &repl{sess: sess, out: out}
	r.printList()
	return r.loop(ctx, in)
}

type repl struct {
	sess    *client.Session
	out     io.Writer
	pending *client.Attachment
}

func (r *repl) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" && r.pending == nil {
			continue
		}
		quit, err := r.handle(ctx, line)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/list":
		if err := r.sess.Load(ctx); err != nil {
			return false, err
		}
		r.printList()
	case "/new":
		var title *string
		if arg != "" {
			title = &arg
		}
		if _, err := r.sess.NewConversation(ctx, title); err != nil {
			return false, err
		}
		r.printList()
	case "/use":
		key, err := r.keyAt(arg)
		if err != nil {
			return false, err
		}
		if err := r.sess.Select(key); err != nil {
			return false, err
		}
		r.printActive()
	case "/delete":
		key, err := r.keyAt(arg)
		if err != nil {
			return false, err
		}
		if err := r.sess.Delete(ctx, key); err != nil {
			return false, err
		}
		r.printList()
	case "/attach":
		data, err := os.ReadFile(arg)
		if err != nil {
			return false, err
		}
		r.pending = &client.Attachment{Filename: filepath.Base(arg), Data: data}
		fmt.Fprintf(r.out, "attached %s (%d bytes), it goes with the next message\n", r.pending.Filename, len(data))
	case "/retry":
		resp, err := r.sess.Retry(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "assistant: %s\n", resp.Reply)
	default:
		if strings.HasPrefix(cmd, "/") {
			return false, fmt.Errorf("unknown command %s", cmd)
		}
		att := r.pending
		r.pending = nil
		resp, err := r.sess.Send(ctx, line, att)
		if err != nil {
			if !errors.Is(err, client.ErrEmptyMessage) && !errors.Is(err, client.ErrSendInFlight) {
				return false, fmt.Errorf("%w (use /retry to resend)", err)
			}
			return false, err
		}
		fmt.Fprintf(r.out, "assistant: %s\n", resp.Reply)
	}
	return false, nil
}

// keyAt resolves a 1-based list position to a conversation key.
func (r *repl) keyAt(arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return "", fmt.Errorf("expected a conversation number, got %q", arg)
	}
	convs := r.sess.Snapshot().Conversations
	if n < 1 || n > len(convs) {
		return "", fmt.Errorf("no conversation %d", n)
	}
	return convs[n-1].Key, nil
}

func (r *repl) printList() {
	st := r.sess.Snapshot()
	if len(st.Conversations) == 0 {
		fmt.Fprintln(r.out, "No conversations yet. Type a message to start one.")
		return
	}
	for i, c := range st.Conversations {
		marker := " "
		if c.Key == st.ActiveKey {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %d. %s\n", marker, i+1, c.DisplayTitle())
	}
}

func (r *repl) printActive() {
	active, ok := r.sess.Snapshot().Active()
	if !ok {
		fmt.Fprintln(r.out, "No conversation selected.")
		return
	}
	for _, m := range active.Messages {
		if m.State == client.StateRetried {
			continue
		}
		suffix := ""
		if m.State == client.StateFailed {
			suffix = " [failed]"
		}
		if m.File != nil {
			suffix += " [file " + *m.File + "]"
		}
		fmt.Fprintf(r.out, "%s: %s%s\n", m.Role, m.Text, suffix)
	}
}
