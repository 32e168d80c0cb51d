package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	ossignal "os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"wirechat/client/internal/api"
	"wirechat/client/internal/call"
	"wirechat/client/internal/config"
	"wirechat/client/internal/domain"
	"wirechat/client/internal/media"
	"wirechat/client/internal/signal"
)

const helpText = `wirechat - terminal client for wirechat calls and chat

Usage:
  wirechat [options]

Environment Variables:
  WIRECHAT_TOKEN        Bearer token (required)
  WIRECHAT_USER         Display name (defaults to the token's username)
  WIRECHAT_WS_URL       Signaling endpoint (default ws://localhost:8080/ws)
  WIRECHAT_API_URL      REST endpoint (default http://localhost:8080/api)
  WIRECHAT_MEDIA        Transport adapter: livekit | sfu (default livekit)
  WIRECHAT_VIDEO_CODEC  Preferred video codec: vp8 | vp9 | h264 (default vp8)
  WIRECHAT_AUDIO_RED    Prefer audio redundancy: true | false
  WIRECHAT_SIMULCAST    Publish layered video on raw sessions: true | false
  WIRECHAT_MAX_BITRATE  Top layer bitrate in bits per second
  WIRECHAT_MAX_FPS      Top layer framerate
  WIRECHAT_DUMP_VIDEO   File to write received H264 video to

Commands (stdin):
  call <user-id>      Start a 1-on-1 call
  callroom <room-id>  Start a room call
  accept              Accept the incoming call
  reject              Reject the incoming call
  end                 Hang up
  mic | cam | share   Toggle microphone / camera / screen share
  join <room>         Join a chat room
  leave <room>        Leave a chat room
  msg <room> <text>   Send a chat message
  rooms               List joined rooms
  state               Print the current call state
  quit                Disconnect and exit

Options:
  -h, --help  Show this help message
`

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logrus.WithField("component", "main")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}

	// Step 1: Resolve the local identity from the bearer token.
	ident, err := api.IdentityFromToken(cfg.Token)
	if err != nil {
		log.WithError(err).Fatal("identity")
	}
	if cfg.Username == "" {
		cfg.Username = ident.Username
	}
	log.WithFields(logrus.Fields{"user_id": ident.UserID, "username": cfg.Username}).Info("identity resolved")

	// Step 2: REST client for call creation and teardown.
	apiClient := api.NewClient(cfg.APIURL, cfg.Token)

	// Step 3: Local capture layer, shared by both adapters.
	local, err := media.NewLocalMedia(cfg.VideoCodec, cfg.MaxBitrate)
	if err != nil {
		log.WithError(err).Fatal("capture layer")
	}

	// Step 4: Media transport adapter.
	var transport media.Transport
	switch cfg.Media {
	case "sfu":
		transport = media.NewSFUTransport(local, media.SFUOptions{
			VideoCodec:   cfg.VideoCodec,
			AudioRED:     cfg.AudioRED,
			Simulcast:    cfg.Simulcast,
			MaxBitrate:   cfg.MaxBitrate,
			MaxFramerate: cfg.MaxFramerate,
		})
	default:
		transport = media.NewLiveKitTransport(local)
	}
	log.WithField("adapter", cfg.Media).Info("media transport ready")

	// Step 5: Signaling channel client.
	sc := signal.NewClient(signal.Options{
		URL:      cfg.WSURL,
		Token:    cfg.Token,
		Username: cfg.Username,
	})

	// Step 6: Call orchestrator over signaling, REST and media.
	orch := call.NewOrchestrator(sc, apiClient, transport, ident)
	orch.Start()

	// Step 7: Console event reporting.
	wireConsoleEvents(sc, orch)

	// Step 8: Optional H264 dump of the first remote video track.
	if cfg.DumpVideo != "" {
		wireVideoDump(orch, transport, cfg.DumpVideo, log)
	}

	// Step 9: Connect and serve user intents until interrupted.
	sc.Connect()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("shutting down")
		cancel()
	}()

	go intentLoop(ctx, cancel, sc, orch)

	<-ctx.Done()

	orch.EndCall(context.Background())
	orch.Stop()
	sc.Disconnect()
	log.Info("done")
}

// wireConsoleEvents prints chat and call activity to stdout.
func wireConsoleEvents(sc *signal.Client, orch *call.Orchestrator) {
	sc.OnStateChange(func(state signal.State) {
		fmt.Printf("* signaling %s\n", state)
	})
	sc.OnReconnecting(func(attempt int) {
		fmt.Printf("* reconnecting (attempt %d)\n", attempt)
	})
	sc.OnProtocolError(func(perr domain.ProtocolError) {
		fmt.Printf("! %s\n", perr.Error())
	})

	sc.On(domain.EventMessage, func(data json.RawMessage) {
		var m domain.ChatMessage
		if json.Unmarshal(data, &m) == nil {
			fmt.Printf("[%s] %s: %s\n", m.Room, m.User, m.Text)
		}
	})
	sc.On(domain.EventHistory, func(data json.RawMessage) {
		var h domain.RoomHistory
		if json.Unmarshal(data, &h) == nil {
			for _, m := range h.Messages {
				fmt.Printf("[%s] %s: %s\n", h.Room, m.User, m.Text)
			}
		}
	})
	sc.On(domain.EventUserJoined, func(data json.RawMessage) {
		var p domain.RoomPresence
		if json.Unmarshal(data, &p) == nil {
			fmt.Printf("[%s] * %s joined\n", p.Room, p.User)
		}
	})
	sc.On(domain.EventUserLeft, func(data json.RawMessage) {
		var p domain.RoomPresence
		if json.Unmarshal(data, &p) == nil {
			fmt.Printf("[%s] * %s left\n", p.Room, p.User)
		}
	})

	var lastStatus domain.CallStatus
	orch.OnStateChange(func(st domain.CallState) {
		if st.Status != lastStatus {
			lastStatus = st.Status
			switch st.Status {
			case domain.CallIncoming:
				if st.RemoteUser != nil {
					fmt.Printf("* incoming call from %s (accept/reject)\n", st.RemoteUser.Username)
				}
			case domain.CallActive:
				fmt.Printf("* call active (%d participants)\n", len(st.Participants))
			case domain.CallEnded:
				if st.Error != "" {
					fmt.Printf("* call ended: %s\n", st.Error)
				} else {
					fmt.Println("* call ended")
				}
			default:
				fmt.Printf("* call %s\n", st.Status)
			}
		}
		if st.Error != "" && st.Status != domain.CallEnded {
			fmt.Printf("! %s\n", st.Error)
		}
	})
}

// wireVideoDump writes the first remote H264 video track to a file once the
// call goes active.
func wireVideoDump(orch *call.Orchestrator, transport media.Transport, path string, log *logrus.Entry) {
	var dumping bool
	orch.OnStateChange(func(st domain.CallState) {
		if st.Status != domain.CallActive || dumping {
			return
		}
		for _, p := range transport.Participants() {
			track := p.VideoTrack
			if track == nil || !strings.EqualFold(track.Codec().MimeType, "video/h264") {
				continue
			}
			dumping = true
			go func() {
				f, err := os.Create(path)
				if err != nil {
					log.WithError(err).Warn("video dump open failed")
					return
				}
				defer f.Close()
				if err := media.WriteTrackH264(track, f); err != nil {
					log.WithError(err).Warn("video dump ended")
				}
			}()
			return
		}
	})
}

func intentLoop(ctx context.Context, cancel context.CancelFunc, sc *signal.Client, orch *call.Orchestrator) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "call":
			if len(fields) < 2 {
				fmt.Println("usage: call <user-id>")
				continue
			}
			id, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				fmt.Println("user id must be a number")
				continue
			}
			if err := orch.InitiateCall(ctx, domain.CallDirect, id); err != nil {
				fmt.Printf("! %v\n", err)
			}

		case "callroom":
			if len(fields) < 2 {
				fmt.Println("usage: callroom <room-id>")
				continue
			}
			id, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				fmt.Println("room id must be a number")
				continue
			}
			if err := orch.InitiateCall(ctx, domain.CallRoom, id); err != nil {
				fmt.Printf("! %v\n", err)
			}

		case "accept":
			if err := orch.AcceptCall(); err != nil {
				fmt.Printf("! %v\n", err)
			}

		case "reject":
			if err := orch.RejectCall("declined"); err != nil {
				fmt.Printf("! %v\n", err)
			}

		case "end":
			orch.EndCall(ctx)

		case "mic":
			if err := orch.ToggleMic(); err != nil {
				fmt.Printf("! %v\n", err)
			}

		case "cam":
			if err := orch.ToggleCamera(); err != nil {
				fmt.Printf("! %v\n", err)
			}

		case "share":
			if err := orch.ToggleScreenShare(); err != nil {
				fmt.Printf("! %v\n", err)
			}

		case "join":
			if len(fields) < 2 {
				fmt.Println("usage: join <room>")
				continue
			}
			sc.JoinRoom(fields[1])

		case "leave":
			if len(fields) < 2 {
				fmt.Println("usage: leave <room>")
				continue
			}
			sc.LeaveRoom(fields[1])

		case "msg":
			if len(fields) < 3 {
				fmt.Println("usage: msg <room> <text>")
				continue
			}
			if err := sc.SendChat(fields[1], strings.Join(fields[2:], " ")); err != nil {
				fmt.Printf("! %v\n", err)
			}

		case "rooms":
			for _, room := range sc.JoinedRooms() {
				fmt.Println(room)
			}

		case "state":
			printState(orch.State())

		case "quit", "exit":
			cancel()
			return

		default:
			fmt.Printf("unknown command %q (try -h)\n", fields[0])
		}
	}
}

func printState(st domain.CallState) {
	fmt.Printf("status=%s", st.Status)
	if st.CallID != "" {
		fmt.Printf(" call=%s type=%s", st.CallID, st.Type)
	}
	if st.RemoteUser != nil {
		fmt.Printf(" remote=%s(%d)", st.RemoteUser.Username, st.RemoteUser.ID)
	}
	if st.RoomName != "" {
		fmt.Printf(" room=%s", st.RoomName)
	}
	fmt.Printf(" muted=%v camera_off=%v sharing=%v\n", st.LocalMuted, st.LocalCameraOff, st.ScreenSharing)
	for _, p := range st.Participants {
		marker := " "
		if p.IsLocal {
			marker = "*"
		}
		fmt.Printf("  %s %s(%d) muted=%v camera_off=%v\n", marker, p.Username, p.UserID, p.IsMuted, p.IsCameraOff)
	}
	if st.Error != "" {
		fmt.Printf("  last error: %s\n", st.Error)
	}
}
