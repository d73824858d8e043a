package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"

	"partsmarket/internal/cart"
	"partsmarket/internal/config"
	"partsmarket/internal/importer"
	"partsmarket/internal/pricing"
)

func main() {
	var (
		filePath    string
		promoCode   string
		pricingPath string
	)
	flag.StringVar(&filePath, "file", "", "Path to a cart CSV (id,kind,name,price,quantity,originalPrice,shopId,estimatedMinutes)")
	flag.StringVar(&promoCode, "promo", "", "Promo code to apply")
	flag.StringVar(&pricingPath, "pricing", os.Getenv("PRICING_CONFIG"), "Path to a pricing YAML file")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := config.NewLogger(envOr("LOG_LEVEL", "warn"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	policy, err := config.LoadPricing(pricingPath)
	if err != nil {
		logger.Fatal("load pricing", zap.Error(err))
	}

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.Error(err))
	}
	defer f.Close()

	store := cart.NewStore("pricecheck")
	count, err := importer.NewCSVImporter(f, store).Run(context.Background())
	if err != nil {
		logger.Fatal("import failed", zap.Error(err))
	}

	if promoCode != "" {
		if _, err := store.ApplyPromo(pricing.NewResolver(policy.PromoTable), promoCode); err != nil {
			logger.Fatal("apply promo", zap.String("code", promoCode), zap.Error(err))
		}
	}

	snap := pricing.RoundSnapshot(store.Snapshot(pricing.NewEngine(policy)))

	fmt.Printf("Priced %d rows (%d items) in %s\n\n", count, store.TotalQuantity(), policy.Currency)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	rows := []struct {
		label string
		value string
	}{
		{"Parts", pricing.Format(snap.PartsSubtotal)},
		{"Labor", pricing.Format(snap.LaborSubtotal)},
		{"Subtotal", pricing.Format(snap.Subtotal)},
		{"Shipping", pricing.Format(snap.ShippingFee)},
		{"Tax", pricing.Format(snap.TaxAmount)},
		{"Discount", "-" + pricing.Format(snap.DiscountAmount)},
		{"Total", pricing.Format(snap.GrandTotal)},
		{"You save", pricing.Format(snap.TotalSavings)},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t\n", r.label, r.value)
	}
	if snap.PromoCode != "" {
		fmt.Fprintf(w, "Promo\t%s\t\n", snap.PromoCode)
	}
	w.Flush()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
