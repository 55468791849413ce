package main

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

func GenerateID() string {
	return uuid.NewString()
}

// GenerateCardNumber fills in a card number when the request leaves it out.
// Visa numbers start with 4, MasterCard with 5.
func GenerateCardNumber(cardType string) string {
	prefix := int64(4)
	if cardType == CardMasterCard {
		prefix = 5
	}
	n1, _ := rand.Int(rand.Reader, big.NewInt(900))
	n2, _ := rand.Int(rand.Reader, big.NewInt(10000))
	n3, _ := rand.Int(rand.Reader, big.NewInt(10000))
	n4, _ := rand.Int(rand.Reader, big.NewInt(10000))
	return fmt.Sprintf("%d%03d%04d%04d%04d", prefix, n1.Int64()+100, n2.Int64(), n3.Int64(), n4.Int64())
}

// GenerateExpiry returns an MM/YY expiry four years out.
func GenerateExpiry() string {
	now := time.Now()
	return fmt.Sprintf("%02d/%02d", int(now.Month()), (now.Year()+4)%100)
}
