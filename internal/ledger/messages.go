package ledger

import (
	"fmt"
	"strings"

	"aracitakip/backend/internal/domain"
)

// User-facing texts. The UI renders Result.Error as is.
const (
	msgProductOrBrokerNotFound = "Ürün veya aracı bulunamadı."
	msgProductInactive         = "Bu ürün aktif değil."
	msgBrokerNotFound          = "Aracı bulunamadı."
	msgProductNotFound         = "Ürün bulunamadı."
	msgCategoryNotFound        = "Kategori bulunamadı."
	msgCategoryInUse           = "Bu kategoriye ait aktif ürünler var. Önce ürünleri silin veya başka kategoriye taşıyın."
	msgCategoryInactive        = "Bu kategori aktif değil."
	msgInvalidCollection       = "Geçersiz tahsilat tutarı."
	msgCollectionTooLarge      = "Tahsilat tutarı çok büyük."
	msgInvalidQuantity         = "Geçersiz miktar."
	msgNegativeStock           = "Stok miktarı negatif olamaz."
	msgNegativePrice           = "Fiyat negatif olamaz."
	msgStockTooLarge           = "Stok miktarı çok büyük."
	msgPriceTooLarge           = "Fiyat çok büyük."
	msgInvalidDiscount         = "İndirim oranı 0 ile 100 arasında olmalıdır."
	msgInvalidTaxRate          = "KDV oranı 0 ile 100 arasında olmalıdır."
	msgNameRequired            = "Ad alanı boş bırakılamaz."
)

// BrokerNotFound is the rejection returned for an unknown broker id.
func BrokerNotFound() domain.Result {
	return domain.Fail(msgBrokerNotFound)
}

func msgInsufficientStock(available int, requested int) string {
	return fmt.Sprintf("Yetersiz stok! Mevcut stok: %d, istenen miktar: %d", available, requested)
}

func paymentLabel(paymentType string) string {
	switch strings.ToLower(strings.TrimSpace(paymentType)) {
	case domain.PaymentCash:
		return "Nakit"
	case domain.PaymentCard:
		return "Kredi Kartı"
	case domain.PaymentTransfer:
		return "Havale/EFT"
	case domain.PaymentCheck:
		return "Çek"
	case "":
		return "Belirtilmemiş"
	default:
		return strings.TrimSpace(paymentType)
	}
}

func collectionName(paymentType string) string {
	return "Tahsilat (" + paymentLabel(paymentType) + ")"
}
