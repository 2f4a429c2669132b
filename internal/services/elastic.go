package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"storefront_back_end/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const purchasesIndex = "purchases"

type purchaseDoc struct {
	Email string `json:"email"`
	models.PurchaseRecord
}

// ElasticPurchaseIndex copie chaque achat dans l'index "purchases" (reporting).
type ElasticPurchaseIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticPurchaseIndex(client *elasticsearch.Client) *ElasticPurchaseIndex {
	return &ElasticPurchaseIndex{client: client, index: purchasesIndex}
}

// IndexPurchase est idempotent : l'identifiant du document dérive du paiement et du fichier.
func (e *ElasticPurchaseIndex) IndexPurchase(ctx context.Context, email string, rec models.PurchaseRecord) error {
	data, err := json.Marshal(purchaseDoc{Email: email, PurchaseRecord: rec})
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: purchaseDocID(email, rec),
		Body:       bytes.NewReader(data),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("erreur envoi Elastic: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elastic a renvoyé une erreur: %s", res.String())
	}
	log.Printf("✅ Achat indexé dans Elasticsearch: %s / %s", email, rec.FileID)
	return nil
}

func purchaseDocID(email string, rec models.PurchaseRecord) string {
	if rec.PaymentIntentID != "" {
		return rec.PaymentIntentID + ":" + rec.FileID
	}
	return email + ":" + rec.FileID
}
