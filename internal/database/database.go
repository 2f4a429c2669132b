package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/store"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gocql/gocql"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
)

// =============================================
// REDIS
// =============================================

func ConnectRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisHost,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connexion Redis: %w", err)
	}
	log.Println("✅ Connecté à Redis")
	return client, nil
}

// =============================================
// SCYLLA DB
// =============================================

func createScyllaCluster(cfg config.Config) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.ScyllaHosts...)
	cluster.Keyspace = cfg.ScyllaKeyspace
	cluster.Consistency = gocql.Quorum
	cluster.SerialConsistency = gocql.Serial
	cluster.Timeout = 5 * time.Second
	cluster.NumConns = 20
	cluster.ReconnectInterval = 1 * time.Second
	if cfg.ScyllaUsername != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.ScyllaUsername,
			Password: cfg.ScyllaPassword,
		}
	}
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	return cluster
}

// ConnectScylla ouvre la session du keyspace des profils et crée la table si besoin.
func ConnectScylla(cfg config.Config) (*gocql.Session, error) {
	if len(cfg.ScyllaHosts) == 0 {
		return nil, fmt.Errorf("SCYLLA_HOSTS non configuré")
	}
	session, err := createScyllaCluster(cfg).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("erreur création session pour %s: %w", cfg.ScyllaKeyspace, err)
	}
	if err := session.Query(store.ScyllaSchema).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("création table profiles: %w", err)
	}
	log.Printf("✅ Session ScyllaDB pour keyspace '%s'", cfg.ScyllaKeyspace)
	return session, nil
}

// =============================================
// ELASTICSEARCH
// =============================================

// ConnectElastic retourne nil sans erreur si ELASTIC_URL est vide : l'indexation est optionnelle.
func ConnectElastic(cfg config.Config) (*elasticsearch.Client, error) {
	if cfg.ElasticURL == "" {
		log.Println("⚠️ ELASTIC_URL absent, les achats ne seront pas indexés")
		return nil, nil
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ElasticURL},
		Username:  cfg.ElasticUser,
		Password:  cfg.ElasticPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("client Elasticsearch: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("connexion Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	log.Println("✅ Connecté à Elasticsearch")
	return client, nil
}

// =============================================
// MINIO
// =============================================

func ConnectMinIO(ctx context.Context, cfg config.Config) (*minio.Client, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connexion MinIO: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("vérification bucket MinIO: %w", err)
	}
	if !exists {
		// les fichiers vendus sont déposés à la main ; un bucket absent est une erreur de config
		return nil, fmt.Errorf("bucket MinIO %q introuvable", cfg.MinioBucket)
	}
	log.Println("🪣 Bucket MinIO présent :", cfg.MinioBucket)
	log.Println("✅ Connecté à MinIO :", cfg.MinioEndpoint)
	return client, nil
}
