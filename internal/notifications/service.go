// Package notifications queues registration and refund notices on Kafka and
// delivers them by email.
package notifications

import (
	"context"
	"fmt"

	"eventreg/internal/shared/config"
	"eventreg/pkg/logger"
)

// Service owns the producer and the consumer pool for one process.
type Service struct {
	producer *KafkaProducer
	consumer *Consumer
	notifier *Notifier
	workers  int
	log      *logger.Logger
}

func NewService(kafka config.KafkaConfig, email config.EmailConfig, log *logger.Logger) (*Service, error) {
	pcfg := DefaultProducerConfig()
	pcfg.Brokers = kafka.Brokers
	pcfg.Topic = kafka.Topic

	producer, err := NewKafkaProducer(pcfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification producer: %w", err)
	}

	var mailer Mailer = NewLogMailer(log)
	if email.SMTPHost != "" {
		smtpMailer, err := NewSMTPMailer(SMTPConfig{
			Host:      email.SMTPHost,
			Port:      email.SMTPPort,
			Username:  email.SMTPUsername,
			Password:  email.SMTPPassword,
			FromEmail: email.FromEmail,
			FromName:  email.FromName,
			StartTLS:  email.SMTPPort != 25,
		})
		if err != nil {
			producer.Close()
			return nil, fmt.Errorf("invalid SMTP configuration: %w", err)
		}
		mailer = smtpMailer
	}

	ccfg := DefaultConsumerConfig()
	ccfg.Brokers = kafka.Brokers
	ccfg.Topics = []string{kafka.Topic}
	ccfg.GroupID = kafka.GroupID

	return &Service{
		producer: producer,
		consumer: NewConsumer(ccfg, mailer, log),
		notifier: NewNotifier(producer, log),
		workers:  kafka.Workers,
		log:      log.WithComponent("notifications"),
	}, nil
}

func (s *Service) Notifier() *Notifier {
	return s.notifier
}

func (s *Service) Start(ctx context.Context) error {
	return s.consumer.Start(ctx, s.workers)
}

func (s *Service) Stop() error {
	cerr := s.consumer.Stop()
	if err := s.producer.Close(); err != nil {
		return err
	}
	return cerr
}
