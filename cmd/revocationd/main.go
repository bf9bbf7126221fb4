// Command revocationd runs the revocation authority as its own
// process, speaking the /check and /revoke wire contract over HTTP.
//
// Point engines at it with revocation.NewClient. All instances must
// share the same Redis, that is what makes the authority single.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/weisiqian3/driveauth/revocation"
)

func main() {
	listen := flag.String("listen", ":8089", "address to serve the authority on")
	redisAddr := flag.String("redis", os.Getenv("REDIS_ADDR"), "redis address (falls back to an embedded ephemeral instance for development)")
	prefix := flag.String("prefix", revocation.DefaultKeyPrefix, "redis key prefix for revocation records")
	flag.Parse()

	addr := *redisAddr
	if addr == "" {
		mini, err := miniredis.Run()
		if err != nil {
			log.Fatal("revocationd: start embedded redis: ", err)
		}
		defer mini.Close()
		addr = mini.Addr()
		log.Print("revocationd: no -redis given, using embedded ephemeral redis at ", addr, " (development only)")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("revocationd: redis ping: ", err)
	}

	server := &http.Server{
		Addr:              *listen,
		Handler:           revocation.NewServer(revocation.NewStore(rdb, *prefix)).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Print("revocationd: listening on ", *listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("revocationd: serve: ", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Print("revocationd: shutdown: ", err)
	}
}
