package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACVerifier проверяет подпись платёжного шлюза: hex(HMAC-SHA256(orderId|paymentId)).
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier создаёт проверку подписи с секретным ключом шлюза.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Verify сообщает, что подпись соответствует заказу и платежу.
func (v *HMACVerifier) Verify(orderID, paymentID, signature string) bool {
	if len(v.secret) == 0 || orderID == "" || paymentID == "" {
		return false
	}
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(want, v.sign(orderID, paymentID))
}

// Sign возвращает подпись для заказа и платежа.
func (v *HMACVerifier) Sign(orderID, paymentID string) string {
	return hex.EncodeToString(v.sign(orderID, paymentID))
}

func (v *HMACVerifier) sign(orderID, paymentID string) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return mac.Sum(nil)
}
