// Package main is the entry point for the chatctl client.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/streamline-ai/chat-client/internal/assist"
	"github.com/streamline-ai/chat-client/internal/chat"
	"github.com/streamline-ai/chat-client/internal/config"
	"github.com/streamline-ai/chat-client/internal/model"
	"github.com/streamline-ai/chat-client/internal/session"
	"github.com/streamline-ai/chat-client/internal/store"
	"github.com/streamline-ai/chat-client/internal/store/natsstore"
	"github.com/streamline-ai/chat-client/internal/store/syncstore"
	"github.com/streamline-ai/chat-client/internal/stream"
	"github.com/streamline-ai/chat-client/internal/transport"
	"github.com/streamline-ai/chat-client/pkg/logger"
	"github.com/streamline-ai/chat-client/pkg/tracing"
)

func main() {
	var (
		message     = flag.String("message", "", "one-shot message to send; prints the aggregated reply and exits")
		modelID     = flag.String("model", "", "model id (defaults to the catalog's first entry)")
		save        = flag.Bool("save", true, "save the one-shot exchange to chat history")
		threadID    = flag.String("thread", "", "existing thread id to continue")
		list        = flag.Bool("list", false, "print the thread directory and exit")
		pin         = flag.String("pin", "", "thread id to pin")
		unpin       = flag.String("unpin", "", "thread id to unpin")
		interactive = flag.Bool("interactive", false, "read messages from stdin in a loop")
	)
	flag.Parse()

	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-client", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, log)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Error("invalid timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
		os.Exit(1)
	}
	sess := session.New(session.StaticToken(cfg.AccessToken), loc)
	log = log.WithSession(sess.ID)

	storeClient, err := dialStore(ctx, cfg, sess, log)
	if err != nil {
		log.Error("failed to connect to store", zap.Error(err))
		os.Exit(1)
	}
	if storeClient != nil {
		defer storeClient.Close()
	}

	if *pin != "" || *unpin != "" {
		runPin(ctx, storeClient, *pin, *unpin, log)
		return
	}
	if *list {
		runList(ctx, storeClient, loc)
		return
	}

	httpClient, err := transport.NewClient(cfg.ChatEndpoint, sess.Creds, cfg.HTTPTimeout, log)
	if err != nil {
		log.Error("failed to create transport", zap.Error(err))
		os.Exit(1)
	}

	var appender chat.Appender
	if storeClient != nil {
		appender = storeClient
	}
	selected := *modelID
	if selected == "" {
		selected = cfg.DefaultModel
	}
	co := chat.NewCoordinator(httpClient, appender, sess, model.ThreadMetadata{ID: *threadID}, log)

	switch {
	case *message != "":
		reply, err := assist.Ask(ctx, co, assist.Request{
			Model:         selected,
			Message:       *message,
			SaveToHistory: *save,
		})
		if err != nil {
			log.Error("ask failed", zap.Error(err))
			os.Exit(1)
		}
		fmt.Println(reply)

	case *interactive:
		runInteractive(ctx, co, storeClient, selected, log)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

// dialStore connects the configured store backend; "none" disables it.
func dialStore(ctx context.Context, cfg *config.Config, sess *session.Session, log *logger.Logger) (store.Client, error) {
	switch cfg.StoreBackend {
	case config.StoreSync:
		return syncstore.Dial(ctx, syncstore.Config{
			URL:       cfg.SyncURL,
			SessionID: sess.ID,
			Creds:     sess.Creds,
		}, log)
	case config.StoreNATS:
		return natsstore.Connect(ctx, natsstore.Config{
			URL:      cfg.NATSURL,
			Token:    cfg.NATSToken,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
		}, sess.ID, log)
	case config.StoreNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func runPin(ctx context.Context, sc store.Client, pin, unpin string, log *logger.Logger) {
	if sc == nil {
		log.Error("pinning requires a store backend")
		os.Exit(1)
	}
	threadID, pinned := pin, true
	if unpin != "" {
		threadID, pinned = unpin, false
	}
	if err := sc.SetPinned(ctx, threadID, pinned); err != nil {
		log.Error("failed to update pin", zap.String("thread_id", threadID), zap.Error(err))
		os.Exit(1)
	}
}

// runList waits for one thread-list snapshot and prints the grouped
// directory.
func runList(ctx context.Context, sc store.Client, loc *time.Location) {
	if sc == nil {
		fmt.Fprintln(os.Stderr, "listing requires a store backend")
		os.Exit(1)
	}

	subCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	threads, err := sc.SubscribeThreads(subCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "subscribing to threads: %v\n", err)
		os.Exit(1)
	}

	snapshot, ok := <-threads
	if !ok {
		fmt.Fprintln(os.Stderr, "no thread snapshot received")
		os.Exit(1)
	}

	dir := chat.BuildDirectory(snapshot, loc)
	if len(dir.Pinned) > 0 {
		fmt.Println("Pinned")
		for _, t := range dir.Pinned {
			fmt.Printf("  %s  %s\n", t.ID, t.Title)
		}
	}
	for _, day := range dir.Days {
		fmt.Println(day.Day.Format("Mon, 02 Jan 2006"))
		for _, t := range day.Threads {
			fmt.Printf("  %s  %s\n", t.ID, t.Title)
		}
	}
}

// runInteractive reads lines from stdin, streams replies to stdout,
// and keeps local state reconciled against store snapshot pushes.
func runInteractive(ctx context.Context, co *chat.Coordinator, sc store.Client, modelID string, log *logger.Logger) {
	if sc != nil {
		msgs, err := sc.SubscribeThreadMessages(ctx, co.Thread().ID)
		if err != nil {
			log.Warn("thread snapshot subscription unavailable", zap.Error(err))
		} else {
			go func() {
				for snapshot := range msgs {
					co.ApplySnapshot(snapshot)
				}
			}()
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			fmt.Print("> ")
			continue
		}

		err := co.Send(ctx, text, chat.SendOptions{Model: modelID}, func(ev stream.Event) error {
			if delta, ok := ev.(stream.ContentDelta); ok {
				fmt.Print(delta.Text)
			}
			return nil
		})
		fmt.Println()
		switch {
		case errors.Is(err, context.Canceled):
			return
		case err != nil:
			log.Error("send failed", zap.Error(err))
		}
		fmt.Print("> ")
	}
}

func serveMetrics(addr string, log *logger.Logger) {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	log.Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Warn("metrics listener stopped", zap.Error(err))
	}
}
