package storage

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type RedisConf struct {
	Addr     string
	Password string
	DB       int
}

var rdb *redis.Client

func InitRedis(c RedisConf) error {
	rdb = redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	return rdb.Ping(context.Background()).Err()
}

func GetRedis() *redis.Client { return rdb }
