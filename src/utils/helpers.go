package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path"

	"github.com/gosimple/slug"
	"github.com/yeqown/go-qrcode"
)

// WithSuffix appends the environment suffix so queues and topics never
// collide across deployments.
func WithSuffix(name string) string {
	suffix := os.Getenv("QUEUE_SUFFIX")
	if suffix == "" {
		return name
	}
	return fmt.Sprintf("%s_%s", name, suffix)
}

func EncryptMessage(key []byte, message string) (string, error) {
	plaintext := []byte(message)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	cipherText := gcm.Seal(nonce, nonce, plaintext, nil)
	encodedString := hex.EncodeToString(cipherText)

	return encodedString, nil
}

func DecryptMessage(key []byte, message string) (*string, error) {
	cipherText, err := hex.DecodeString(message)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	decryptedData, err := gcm.Open(nil, cipherText[:gcm.NonceSize()], cipherText[gcm.NonceSize():], nil)
	if err != nil {
		return nil, err
	}
	decodedString := string(decryptedData)

	return &decodedString, nil
}

// GenerateBookingQR writes a QR image carrying the encrypted booking
// reference and returns the file path.
func GenerateBookingQR(eventName string, bookingId string, customerId string) (string, error) {
	rawData := map[string]any{
		"bookingId":  bookingId,
		"customerId": customerId,
	}
	rawBytes, _ := json.Marshal(rawData)
	rawText := string(rawBytes)

	keyEnv := os.Getenv("API_QRC_SECRET")
	key, err := hex.DecodeString(keyEnv)
	if err != nil {
		log.Printf("Could not read key from string: %s\n", err.Error())
		return "", err
	}
	encryptedMessage, err := EncryptMessage(key, rawText)
	if err != nil {
		log.Printf("Error encrypting message: %s\n", err.Error())
		return "", err
	}
	qrc, err := qrcode.New(encryptedMessage)
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s.jpeg", slug.Make(eventName))
	filepath := path.Join(os.TempDir(), filename)
	if err = qrc.Save(filepath); err != nil {
		log.Printf("Could not save qrcode to file [%s]: %s\n", filepath, err.Error())
		return "", err
	}
	return filepath, nil
}
