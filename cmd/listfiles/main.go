package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/database"
	"storefront_back_end/internal/services"
)

// listfiles affiche les fichiers vendables du bucket (nom et identifiant à
// reporter dans le fileId des articles).
func main() {
	prefix := flag.String("prefix", "", "ne lister que les objets sous ce préfixe")
	flag.Parse()

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := database.ConnectMinIO(ctx, cfg)
	if err != nil {
		log.Fatal("❌ ", err)
	}

	files, err := services.NewMinioFiles(client, cfg.MinioBucket, cfg.DownloadURLTTL).List(ctx, *prefix)
	if err != nil {
		log.Fatal("❌ Erreur listing: ", err)
	}
	if len(files) == 0 {
		log.Println("📭 Aucun fichier dans le bucket", cfg.MinioBucket)
		return
	}
	for _, f := range files {
		fmt.Printf("Name: %s, ID: %s (%d octets)\n", f.Name, f.ID, f.Size)
	}
}
