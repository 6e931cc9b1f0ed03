package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"call-analysis-engine/pkg/metrics"
)

// AMQPConfig holds AMQP client configuration
type AMQPConfig struct {
	URL          string
	QueueName    string
	ExchangeName string
	RoutingKey   string
}

// AMQPClient publishes analysis events to an AMQP queue.
type AMQPClient struct {
	logger *logrus.Logger
	config AMQPConfig

	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
	connMutex sync.RWMutex
	stopChan  chan struct{}
}

// NewAMQPClient creates a new AMQP client
func NewAMQPClient(logger *logrus.Logger, config AMQPConfig) *AMQPClient {
	if config.RoutingKey == "" {
		config.RoutingKey = config.QueueName
	}
	return &AMQPClient{
		logger:   logger,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Connect establishes a connection to the AMQP server and declares the
// event queue.
func (c *AMQPClient) Connect() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.connected {
		return nil
	}
	if c.config.URL == "" || c.config.QueueName == "" {
		return fmt.Errorf("AMQP URL or queue name not configured")
	}

	// amqp.Dial blocks with no context support; run it behind a timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connChan := make(chan struct {
		conn *amqp.Connection
		err  error
	}, 1)

	go func() {
		conn, err := amqp.Dial(c.config.URL)
		select {
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
		case connChan <- struct {
			conn *amqp.Connection
			err  error
		}{conn, err}:
		}
	}()

	var conn *amqp.Connection
	var err error
	select {
	case result := <-connChan:
		conn = result.conn
		err = result.err
	case <-ctx.Done():
		return fmt.Errorf("connection to AMQP server timed out after 5 seconds")
	}
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		c.config.QueueName,
		true,  // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare AMQP queue: %w", err)
	}

	c.conn = conn
	c.channel = channel
	c.connected = true
	c.stopChan = make(chan struct{})

	if metrics.IsMetricsEnabled() && metrics.AMQPConnectionStatus != nil {
		metrics.AMQPConnectionStatus.Set(1)
	}

	c.logger.WithFields(logrus.Fields{
		"url":   c.config.URL,
		"queue": c.config.QueueName,
	}).Info("Connected to AMQP server")

	go c.monitorConnection()
	return nil
}

// Disconnect closes the AMQP connection
func (c *AMQPClient) Disconnect() {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if !c.connected {
		return
	}

	close(c.stopChan)
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.connected = false

	if metrics.IsMetricsEnabled() && metrics.AMQPConnectionStatus != nil {
		metrics.AMQPConnectionStatus.Set(0)
	}
	c.logger.Info("Disconnected from AMQP server")
}

// IsConnected returns the connection status
func (c *AMQPClient) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.connected
}

// PublishEvent publishes one analysis event to the queue. Publishing is
// bounded by a short timeout so a stalled broker cannot back up the call
// pipelines.
func (c *AMQPClient) PublishEvent(event Event) error {
	// A broker problem must never crash the analysis engine
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logrus.Fields{
				"call_uuid": event.CallUUID,
				"recover":   r,
			}).Error("Recovered from panic in AMQP PublishEvent")
		}
	}()

	if !c.IsConnected() {
		c.countPublish("error")
		return fmt.Errorf("not connected to AMQP server")
	}

	body, err := json.Marshal(event)
	if err != nil {
		c.countPublish("error")
		return fmt.Errorf("failed to marshal event to JSON: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	publishChan := make(chan error, 1)
	go func() {
		c.connMutex.RLock()
		defer c.connMutex.RUnlock()

		if !c.connected || c.channel == nil {
			select {
			case <-ctx.Done():
			case publishChan <- fmt.Errorf("lost AMQP connection before publishing"):
			}
			return
		}

		err := c.channel.Publish(
			c.config.ExchangeName,
			c.config.RoutingKey,
			false, // Mandatory
			false, // Immediate
			amqp.Publishing{
				ContentType:  "application/json",
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				Type:         event.Type,
				// Expire undelivered events rather than letting the queue
				// build up behind a dead consumer
				Expiration: "43200000", // 12 hours in milliseconds
			},
		)

		select {
		case <-ctx.Done():
		case publishChan <- err:
		}
	}()

	select {
	case err := <-publishChan:
		if err != nil {
			c.countPublish("error")
			return fmt.Errorf("failed to publish event to AMQP: %w", err)
		}
	case <-ctx.Done():
		c.countPublish("timeout")
		return fmt.Errorf("publishing to AMQP timed out after 200ms")
	}

	c.countPublish("success")
	c.logger.WithFields(logrus.Fields{
		"call_uuid": event.CallUUID,
		"type":      event.Type,
	}).Debug("Published event to AMQP")
	return nil
}

func (c *AMQPClient) countPublish(status string) {
	if metrics.IsMetricsEnabled() && metrics.EventsPublished != nil {
		metrics.EventsPublished.WithLabelValues("amqp", status).Inc()
	}
}

// monitorConnection watches for connection loss and reconnects with
// exponential backoff.
func (c *AMQPClient) monitorConnection() {
	closeChan := make(chan *amqp.Error)

	c.connMutex.RLock()
	if c.conn != nil {
		c.conn.NotifyClose(closeChan)
	}
	c.connMutex.RUnlock()

	select {
	case <-c.stopChan:
		return
	case closeErr := <-closeChan:
		c.connMutex.Lock()
		c.connected = false
		c.connMutex.Unlock()

		if metrics.IsMetricsEnabled() && metrics.AMQPConnectionStatus != nil {
			metrics.AMQPConnectionStatus.Set(0)
		}
		c.logger.WithError(closeErr).Warn("AMQP connection closed, attempting to reconnect")

		policy := backoff.NewExponentialBackOff()
		policy.MaxElapsedTime = 0 // Keep trying until shutdown

		err := backoff.Retry(func() error {
			select {
			case <-c.stopChan:
				return backoff.Permanent(fmt.Errorf("shutting down"))
			default:
			}
			return c.Connect()
		}, policy)
		if err != nil {
			c.logger.WithError(err).Error("Gave up reconnecting to AMQP server")
		}
	}
}
