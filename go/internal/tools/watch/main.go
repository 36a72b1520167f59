// Command watch follows a room the way a shared screen does and logs what it
// would show whenever that changes.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizcoletivo/go/internal/dbconfig"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/changefeed"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/progression"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/realtime"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/repository"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/roomcode"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/state"
)

func main() {
	room := flag.String("room", "", "room code to watch")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *room == "" {
		log.Fatal().Msg("-room is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, dbconfig.NewConfigFromEnv("quiz-watch").DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	jsCfg := changefeed.DefaultJetStreamConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		jsCfg.URL = url
	}
	nc, err := changefeed.Connect(jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to NATS")
	}
	defer nc.Close()
	js, err := jetstream.New(nc)
	if err != nil {
		log.Fatal().Err(err).Msg("create JetStream context")
	}
	feed := changefeed.NewJetStreamSource(nc, js, jsCfg).Feed()
	defer feed.Close()

	clock := clockwork.NewRealClock()
	store := state.NewStore(state.State{})
	mirror := progression.NewMirror(clock)
	store.Subscribe(mirror.Listener())

	code := roomcode.Normalize(*room)
	adapter := realtime.NewAdapter(code, repository.NewRepository(pool), feed, store)
	if err := adapter.Start(ctx); err != nil {
		log.Fatal().Err(err).Str("room_code", code).Msg("failed to join room")
	}
	defer adapter.Close()

	watch(ctx, store, mirror, clock)
}

// watch redraws on every tick and logs the screen when it differs from the last one.
func watch(ctx context.Context, store *state.Store, mirror *progression.Mirror, clock clockwork.Clock) {
	ticker := clock.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	last := ""
	for {
		if current := screen(store.State(), mirror.Countdown()); current != last {
			log.Info().Str("room_code", roomCode(store.State())).Msg("\n" + current)
			last = current
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}

func roomCode(s state.State) string {
	if s.Game == nil {
		return ""
	}
	return s.Game.RoomCode
}
