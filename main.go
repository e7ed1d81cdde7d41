package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TaskFlow/data/database/mgo/mongoutil"
	"TaskFlow/global/config"
	"TaskFlow/logger"
	"TaskFlow/middleware"
	"TaskFlow/module/notify"
	"TaskFlow/service/mailer"
	"TaskFlow/service/mgo"
	"TaskFlow/service/realtime"
	"TaskFlow/service/storage"
	"TaskFlow/tools/ids"

	"github.com/nats-io/nats.go"
)

func main() {
	cfgPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	conf, err := config.Load(*cfgPath)
	if err != nil {
		logger.Errorf("[boot] config: %v", err)
		os.Exit(1)
	}
	ids.SetNodeID(conf.NodeID)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// notification store: required, the dispatcher's fatal path
	mgo.StartAsync(rootCtx, &mongoutil.Config{
		URI:         conf.Mongo.URI,
		Database:    conf.Mongo.Database,
		Username:    conf.Mongo.Username,
		Password:    conf.Mongo.Password,
		MaxPoolSize: conf.Mongo.MaxPoolSize,
	})
	readyCtx, readyCancel := context.WithTimeout(rootCtx, 30*time.Second)
	err = mgo.WaitReady(readyCtx)
	readyCancel()
	if err != nil {
		logger.Errorf("[boot] mongo: %v", err)
		os.Exit(1)
	}
	store := notify.NewMongoStore()

	reg := realtime.NewRegistry(realtime.RegistryConf{
		SendQueueSize: conf.WS.SendQueueSize,
		IdleTTL:       conf.WS.IdleTTL,
		SweepEvery:    conf.WS.SweepEvery,
	})
	bc := realtime.NewBroadcaster(reg)

	// presence mirror: optional, best-effort
	if conf.Redis.Enabled {
		if err := storage.InitRedis(storage.RedisConf{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		}); err != nil {
			logger.Warnf("[boot] redis unavailable, presence mirror off: %v", err)
		} else {
			reg.SetPresenceSink(storage.NewPresenceMirror(storage.GetRedis(), 2*conf.WS.IdleTTL))
		}
	}

	// email queue: optional, degrades to in-app-only notifications
	var mail mailer.Mailer = mailer.Noop{}
	var nc *nats.Conn
	if conf.Nats.Enabled {
		nc, err = nats.Connect(conf.Nats.URL, nats.Name("taskflow-gateway"))
		if err != nil {
			logger.Warnf("[boot] nats unavailable, email off: %v", err)
			nc = nil
		} else {
			mail = mailer.NewQueueMailer(nc, conf.Nats.EmailSubject, conf.Nats.QueueSize)
		}
	}

	disp := notify.NewDispatcher(store, mail, bc)

	srv := realtime.NewServer(conf, reg, bc, middleware.OriginChecker(conf.AllowedOrigins))
	notify.NewHandler(store, disp, bc, []byte(conf.JWTSecret)).RegisterRoutes(srv.Engine())

	go func() {
		if err := srv.Run(); err != nil {
			logger.Errorf("[boot] server: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-rootCtx.Done():
	}

	logger.Infof("[boot] shutting down")
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
	mail.Close()
	if nc != nil {
		nc.Close()
	}
	logger.Sync()
}
