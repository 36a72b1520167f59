package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/quizcoletivo/go/internal/dbconfig"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/repository"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/roomcode"
)

// Room mirrors the demo room JSON layout.
type Room struct {
	Config  models.QuizConfig `json:"config"`
	Players []string          `json:"players"`
}

func main() {
	path := flag.String("file", "go/internal/assets/demo_room.json", "demo room JSON")
	origin := flag.String("origin", "http://localhost:5173", "public origin for the join link")
	flag.Parse()
	ctx := context.Background()

	// 1) Load the room
	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read room: %v\n", err)
		os.Exit(1)
	}
	var room Room
	if err := json.Unmarshal(data, &room); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal room: %v\n", err)
		os.Exit(1)
	}
	cfg := room.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "room config: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to DB
	pool, err := pgxpool.New(ctx, dbconfig.NewConfigFromEnv("quiz-seed").DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	repo := repository.NewRepository(pool)

	// 3) Create the game, retrying on a taken code
	var game *models.Game
	for attempt := 0; attempt < 5 && game == nil; attempt++ {
		code, err := roomcode.Generate(roomcode.DefaultLength)
		if err != nil {
			fmt.Fprintf(os.Stderr, "room code: %v\n", err)
			os.Exit(1)
		}
		game, err = repo.CreateGame(ctx, repository.CreateGameParams{RoomCode: code, Config: cfg})
		if err != nil && !errors.Is(err, repository.ErrRoomCodeTaken) {
			fmt.Fprintf(os.Stderr, "create game: %v\n", err)
			os.Exit(1)
		}
	}
	if game == nil {
		fmt.Fprintln(os.Stderr, "create game: no free room code")
		os.Exit(1)
	}

	// 4) Seed players
	total, inserted, errs := len(room.Players), 0, 0
	for _, name := range room.Players {
		_, err := repo.InsertPlayer(ctx, models.Player{
			GameID:    game.ID,
			Name:      name,
			AvatarRef: fmt.Sprintf("https://picsum.photos/seed/%s/100", name),
			IsOnline:  true,
		})
		if err != nil {
			errs++
			continue
		}
		inserted++
	}
	fmt.Printf(
		"Room %s seed: players total=%d inserted=%d errors=%d\nJoin: %s\n",
		game.RoomCode, total, inserted, errs, roomcode.JoinURL(*origin, "/", game.RoomCode),
	)
}
