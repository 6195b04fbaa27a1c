package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/NguyenThanhBinh1210/liveapp/gateway"
	"github.com/NguyenThanhBinh1210/liveapp/logger"
)

func loadConfig(path string) (gateway.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("LIVEAPP")
	v.AutomaticEnv()

	v.SetDefault("addr", ":8081")
	v.SetDefault("jwt_secret", "dev-secret-change-me")
	v.SetDefault("presence_ttl", "90s")
	v.SetDefault("kafka_topic", "liveapp.chat.archive")

	if err := v.ReadInConfig(); err != nil {
		// config file is optional; env and defaults still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return gateway.Config{}, err
		}
		logger.Infof("[gatewayd] no config file at %s, using defaults", path)
	}

	ttl, err := time.ParseDuration(v.GetString("presence_ttl"))
	if err != nil {
		ttl = 90 * time.Second
	}
	return gateway.Config{
		Addr:          v.GetString("addr"),
		NodeID:        v.GetString("node_id"),
		JWTSecret:     v.GetString("jwt_secret"),
		PresenceTTL:   ttl,
		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
		KafkaBrokers:  v.GetStringSlice("kafka_brokers"),
		KafkaTopic:    v.GetString("kafka_topic"),
		NatsURL:       v.GetString("nats_url"),
	}, nil
}

func main() {
	cfgPath := flag.String("config", "gateway.yaml", "config file path")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		logger.Errorf("[gatewayd] load config: %v", err)
		os.Exit(1)
	}

	srv, err := gateway.NewServer(cfg)
	if err != nil {
		logger.Errorf("[gatewayd] init: %v", err)
		os.Exit(1)
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		logger.Infof("[gatewayd] signal %v, shutting down", s)
		srv.Close()
		os.Exit(0)
	}()

	if err := srv.Run(); err != nil {
		logger.Errorf("[gatewayd] serve: %v", err)
		os.Exit(1)
	}
}
