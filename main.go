package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"turfwar/client"
)

// turfwar entry point: opens a sync session against the backend and serves
// the local debug/metrics endpoints.
func main() {
	var debugAddr, socketURL, gatewayURL, user, token string
	flag.StringVar(&debugAddr, "debug-addr", ":8081", "debug/metrics listen address, e.g. :8081")
	flag.StringVar(&socketURL, "socket", "", "push channel URL (overrides TURF_SOCKET_URL)")
	flag.StringVar(&gatewayURL, "gateway", "", "mutation gateway URL (overrides TURF_GATEWAY_URL)")
	flag.StringVar(&user, "user", "", "user identity (overrides TURF_USER_ID)")
	flag.StringVar(&token, "token", "", "bearer credential (overrides TURF_TOKEN)")
	flag.Parse()

	if err := client.InitLogger("client.log"); err != nil {
		panic(err)
	}
	defer client.SyncLogger()

	cfg, err := client.LoadConfig()
	if err != nil {
		client.Log.Fatalf("config: %v", err)
	}
	if socketURL != "" {
		cfg.SocketURL = socketURL
	}
	if gatewayURL != "" {
		cfg.GatewayURL = gatewayURL
	}
	if user != "" {
		cfg.UserID = user
	}
	if token != "" {
		cfg.Token = token
	}

	sess := client.NewSession(cfg, client.SessionOptions{
		Listeners: client.Listeners{
			OnEvent: func(ev client.TerritoryEvent) {
				client.Log.Infof("event %s: territory=%s owner=%s status=%s",
					ev.Type, ev.Territory.ID, ev.Territory.Owner, ev.Territory.Status)
			},
			OnNotification: func(n client.Notification) {
				client.Log.Infof("notification %s: %s", n.Kind, n.Message)
			},
			OnStateChange: func(st client.ConnState, errMsg string) {
				if errMsg != "" {
					client.Log.Warnf("connection %s: %s", st, errMsg)
				}
			},
		},
		OnFeedback: func(f client.Feedback) {
			client.Log.Infof("mutation %s %s: %s", f.MutationID, f.Stage, f.Message)
		},
		OnStale: func(aggregate string) {
			client.Log.Infof("aggregate %s marked stale", aggregate)
		},
	})
	sess.Connect()

	srv := &http.Server{Addr: debugAddr, Handler: sess.DebugMux()}
	go func() {
		client.Log.Infof("debug endpoints listening on %s", debugAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			client.Log.Fatalf("listen: %v", err)
		}
	}()

	// Graceful exit (Ctrl+C).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	client.Log.Info("Shutting down...")
	sess.Close()
	_ = srv.Close()
}
