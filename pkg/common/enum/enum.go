package enum

type KVStoreType string
type SourceType string

const (
	KVStoreTypeBadger KVStoreType = "badger"
	KVStoreTypeRedis  KVStoreType = "redis"
	KVStoreTypeMemory KVStoreType = "memory"
)

const (
	SourceTypeHTTP      SourceType = "http"
	SourceTypeWebsocket SourceType = "websocket"
	SourceTypeSimulate  SourceType = "simulate"
)
