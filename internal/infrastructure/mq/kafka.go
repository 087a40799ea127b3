package mq

import (
	"fmt"
	"log"

	"rewardsystem/internal/config"

	"github.com/IBM/sarama"
)

// Publisher OutboxSender 通过它投递消息
type Publisher interface {
	Publish(topic, key, value string) error
	Close() error
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
}

// NewKafkaPublisher 同步生产者，等待所有副本确认
func NewKafkaPublisher(cfg *config.KafkaConfig) (*KafkaPublisher, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}
	return NewPublisherWithProducer(producer), nil
}

func NewPublisherWithProducer(producer sarama.SyncProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher Kafka 未启用时只打印事件
type LogPublisher struct{}

func (LogPublisher) Publish(topic, key, value string) error {
	log.Printf("[Event] topic=%s key=%s payload=%s", topic, key, value)
	return nil
}

func (LogPublisher) Close() error {
	return nil
}

// InitPublisher 未启用 Kafka 时返回 LogPublisher，创建失败直接退出
func InitPublisher(cfg *config.KafkaConfig) Publisher {
	if !cfg.Enabled {
		log.Println("Kafka 未启用，事件只写日志")
		return LogPublisher{}
	}

	publisher, err := NewKafkaPublisher(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Println("Kafka 生产者创建成功")
	return publisher
}
