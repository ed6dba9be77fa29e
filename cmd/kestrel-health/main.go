package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"kestrel-go/pkg/database"
	"kestrel-go/pkg/messaging"
)

// ANSI Colors
const (
	Green = "\033[32m"
	Red   = "\033[31m"
	Reset = "\033[0m"
)

func main() {
	fmt.Println("Kestrel Back-plane Health Check")
	fmt.Println("===============================")

	overallStatus := true

	if checkRedis() {
		printStatus("Redis", true)
	} else {
		printStatus("Redis", false)
		overallStatus = false
	}

	if checkPostgres() {
		printStatus("PostgreSQL", true)
	} else {
		printStatus("PostgreSQL", false)
		overallStatus = false
	}

	if checkClickHouse() {
		printStatus("ClickHouse", true)
	} else {
		printStatus("ClickHouse", false)
		overallStatus = false
	}

	if checkNATS() {
		printStatus("NATS JetStream", true)
	} else {
		printStatus("NATS JetStream", false)
		overallStatus = false
	}

	fmt.Println("===============================")
	if overallStatus {
		fmt.Printf("%sSystem Ready%s\n", Green, Reset)
		os.Exit(0)
	}
	fmt.Printf("%sSystem Unhealthy%s\n", Red, Reset)
	os.Exit(1)
}

func printStatus(service string, up bool) {
	if up {
		fmt.Printf("[%sOK%s] %s\n", Green, Reset, service)
	} else {
		fmt.Printf("[%sFAIL%s] %s\n", Red, Reset, service)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func checkRedis() bool {
	client, err := database.NewRedisClient(&database.RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		UseTLS:   getEnv("REDIS_TLS", "") == "true",
	})
	if err != nil {
		return false
	}
	defer client.Close()
	return client.Ping(context.Background()) == nil
}

func checkPostgres() bool {
	client, err := database.NewPostgresClient(&database.PostgresConfig{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     5432,
		Username: getEnv("POSTGRES_USER", "kestrel"),
		Password: getEnv("POSTGRES_PASSWORD", ""),
		Database: getEnv("POSTGRES_DB", "kestrel"),
		SSLMode:  "disable",
	})
	if err != nil {
		return false
	}
	defer client.Close()
	_, err = client.Health(context.Background())
	return err == nil
}

func checkClickHouse() bool {
	client, err := database.NewClickHouseClient(&database.ClickHouseConfig{
		Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
		Port:     9000,
		Database: getEnv("CLICKHOUSE_DB", "default"),
		Username: getEnv("CLICKHOUSE_USER", "default"),
		Password: getEnv("CLICKHOUSE_PASSWORD", ""),
	})
	if err != nil {
		return false
	}
	defer client.Close()
	return client.Ping(context.Background()) == nil
}

func checkNATS() bool {
	nc, err := messaging.NewClient(&messaging.NatsConfig{
		URL:           getEnv("NATS_URL", "nats://localhost:4222"),
		ReconnectWait: 100 * time.Millisecond,
		MaxReconnects: 1,
	})
	if err != nil {
		return false
	}
	defer nc.Close()
	return nc.Connection().IsConnected()
}
