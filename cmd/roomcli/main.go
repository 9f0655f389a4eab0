// roomcli is a terminal room client. It joins a room through the
// relay and prints chat and timeline traffic; when started with
// -host it drives the shared playback clock.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Rakamoosaka/kormek/internal/adapters/roomsapi"
	"github.com/Rakamoosaka/kormek/internal/adapters/rtc"
	"github.com/Rakamoosaka/kormek/internal/adapters/ws"
	"github.com/Rakamoosaka/kormek/internal/call"
	"github.com/Rakamoosaka/kormek/internal/config"
	"github.com/Rakamoosaka/kormek/internal/core"
	"github.com/Rakamoosaka/kormek/internal/domain"
)

// clockPlayer is a headless media element: position advances with the
// wall clock while playing.
type clockPlayer struct {
	mu      sync.Mutex
	base    float64
	started time.Time
	playing bool
}

func (p *clockPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return p.base + time.Since(p.started).Seconds()
	}
	return p.base
}

func (p *clockPlayer) Seek(pos float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = pos
	p.started = time.Now()
}

func (p *clockPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		p.playing = true
		p.started = time.Now()
	}
}

func (p *clockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.base += time.Since(p.started).Seconds()
		p.playing = false
	}
}

func (p *clockPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func main() {
	var (
		roomID     = flag.String("room", "", "room id to join (empty with -create makes a new room)")
		createName = flag.String("create", "", "create a room with this name and join it")
		name       = flag.String("name", "", "display name, unique within the room")
		host       = flag.Bool("host", false, "drive the shared playback clock")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if err := domain.ValidateUsername(*name); err != nil {
		fmt.Fprintln(os.Stderr, "bad -name:", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	api := roomsapi.New(cfg.APIBase)

	if *createName != "" {
		room, err := api.CreateRoom(ctx, *createName, name)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create room:", err)
			os.Exit(1)
		}
		*roomID = string(room.ID)
		fmt.Println("created room", room.ID)
	}
	if *roomID == "" {
		fmt.Fprintln(os.Stderr, "need -room or -create")
		os.Exit(1)
	}

	room, err := api.GetRoom(ctx, domain.RoomID(*roomID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "fetch room:", err)
		os.Exit(1)
	}
	fmt.Printf("room %q", room.Name)
	if room.MediaURL != nil {
		fmt.Printf(", media %s", *room.MediaURL)
	}
	fmt.Println()

	session := core.NewRoomSession(*name, *host)
	player := &clockPlayer{}
	rec := core.NewReconciler(session)
	rec.SetPlayer(player)

	calls := call.NewManager(session, rtc.StaticCapture(*name), rtc.DefaultConfig(cfg.StunServers))

	ch, err := ws.Dial(ctx, cfg.WSBase, *roomID, *name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	session.Attach(ch)

	closed := make(chan struct{})
	ch.Bind(session.HandleFrame, func() {
		session.HandleClose()
		close(closed)
	})

	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if !strings.HasPrefix(line, "/") {
				session.SendChat(line)
				continue
			}
			runCommand(ctx, line, session, rec, player, calls, api, domain.RoomID(*roomID))
		}
		session.Leave()
	}()

	// Print activity as it accumulates.
	go func() {
		var lastChat int
		for {
			time.Sleep(300 * time.Millisecond)
			chat := session.ChatLog()
			for ; lastChat < len(chat); lastChat++ {
				fmt.Printf("[%s] %s\n", chat[lastChat].Sender, chat[lastChat].Text)
			}
		}
	}()

	<-closed
	calls.EndCall()
	fmt.Println("disconnected")
}

func runCommand(
	ctx context.Context,
	line string,
	session *core.RoomSession,
	rec *core.Reconciler,
	player *clockPlayer,
	calls *call.Manager,
	api *roomsapi.Client,
	roomID domain.RoomID,
) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/play":
		player.Play()
		rec.HandlePlay()
	case "/pause":
		player.Pause()
		rec.HandlePause()
	case "/seek":
		if len(fields) < 2 {
			fmt.Println("usage: /seek <seconds>")
			return
		}
		t, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || t < 0 {
			fmt.Println("bad position")
			return
		}
		rec.HandleSeekStart()
		player.Seek(t)
		rec.HandleSeekEnd()
	case "/media":
		if len(fields) < 2 {
			fmt.Println("usage: /media <url>")
			return
		}
		url := fields[1]
		if _, err := api.UpdateMedia(ctx, roomID, &url); err != nil {
			fmt.Println("media update:", err)
			return
		}
		session.ChangeMedia(url)
	case "/start":
		session.StartMeeting()
	case "/end":
		session.EndMeeting()
	case "/call":
		if err := calls.StartCall(ctx); err != nil {
			fmt.Println("call:", err)
		}
	case "/hangup":
		calls.EndCall()
	case "/peers":
		fmt.Println("peers:", strings.Join(session.Peers(), ", "))
	case "/streams":
		for _, rs := range calls.RemoteStreams() {
			fmt.Printf("%s: %d track(s)\n", rs.Peer, len(rs.Tracks))
		}
	case "/pos":
		m := session.Media()
		fmt.Printf("playing=%v position=%.1fs local=%.1fs\n", m.Playing, m.PositionSeconds, player.Position())
	case "/quit":
		session.Leave()
	default:
		fmt.Println("commands: /play /pause /seek /media /start /end /call /hangup /peers /streams /pos /quit")
	}
}
