package transport

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ChangeChannel = "changes"

// RedisPubSub 实现
type RedisPubSub struct {
	client        *redis.Client
	nodeID        string
	channelPrefix string
}

func NewRedisTransport(ctx context.Context, addr, password string, db int) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 验证连接
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisPubSub{
		client:        client,
		nodeID:        uuid.New().String(),
		channelPrefix: "tasklist_",
	}, nil
}

// NodeID 本进程的标识，用于忽略自己发出的事件
func (rs *RedisPubSub) NodeID() string {
	return rs.nodeID
}

func (rs *RedisPubSub) channel() string {
	return rs.channelPrefix + ChangeChannel
}

func (rs *RedisPubSub) PublishChange(ctx context.Context, change Change) error {
	if change.Node == "" {
		change.Node = rs.nodeID
	}
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return rs.client.Publish(ctx, rs.channel(), data).Err()
}

// 订阅变更流，ctx 结束时关闭通道
func (rs *RedisPubSub) SubscribeChanges(ctx context.Context) (<-chan Change, error) {
	pubsub := rs.client.Subscribe(ctx, rs.channel())
	// 等待订阅确认，避免丢失紧随其后的消息
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	ch := make(chan Change, 16)
	go func() {
		defer close(ch)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					continue // 跳过无效数据
				}
				select {
				case ch <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// 关闭连接
func (rs *RedisPubSub) Close() error {
	return rs.client.Close()
}
