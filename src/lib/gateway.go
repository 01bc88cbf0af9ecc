package lib

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"tbs/src/config"
	"tbs/src/types"
	"time"
)

// GatewayClient wraps the payment gateway's checkout API. One payment
// request maps to one merchant order on the gateway side.
type GatewayClient struct {
	BaseURL    string
	MerchantID string

	inner *http.Client
}

var gatewayClient *GatewayClient

func GetGatewayClient() *GatewayClient {
	if gatewayClient != nil {
		return gatewayClient
	}
	c := &GatewayClient{
		BaseURL:    config.GatewayBaseURL(),
		MerchantID: config.GatewayMerchantID(),
		inner:      &http.Client{Timeout: 15 * time.Second},
	}
	gatewayClient = c
	return c
}

// NewGatewayClient Replace gateway instance with custom client implementation
func NewGatewayClient(c *GatewayClient) *GatewayClient {
	if c.inner == nil {
		c.inner = &http.Client{Timeout: 15 * time.Second}
	}
	gatewayClient = c
	return gatewayClient
}

type PaymentMetaInfo struct {
	Udf1 string `json:"udf1,omitempty"`
	Udf2 string `json:"udf2,omitempty"`
	Udf3 string `json:"udf3,omitempty"`
	Udf4 string `json:"udf4,omitempty"`
	Udf5 string `json:"udf5,omitempty"`
}

type CreatePaymentRequestInput struct {
	MerchantOrderID string
	Amount          float64
	Message         string
	RedirectURL     string
	MetaInfo        PaymentMetaInfo
}

type CreatePaymentResponse struct {
	OrderID     string `json:"orderId"`
	State       string `json:"state"`
	RedirectURL string `json:"redirectUrl"`
	ExpireAt    int64  `json:"expireAt"`
}

type createPaymentRequestBody struct {
	MerchantID      string          `json:"merchantId"`
	MerchantOrderID string          `json:"merchantOrderId"`
	Amount          float64         `json:"amount"`
	MetaInfo        PaymentMetaInfo `json:"metaInfo"`
	PaymentFlow     paymentFlow     `json:"paymentFlow"`
}

type paymentFlow struct {
	Type         string       `json:"type"`
	Message      string       `json:"message"`
	MerchantUrls merchantUrls `json:"merchantUrls"`
}

type merchantUrls struct {
	RedirectURL string `json:"redirectUrl"`
}

// CreatePaymentRequest registers a merchant order with the gateway. A
// response missing either the redirect URL or the order id is treated as
// a failed call even when the gateway reports success.
func (c *GatewayClient) CreatePaymentRequest(in *CreatePaymentRequestInput) (*CreatePaymentResponse, error) {
	reqBody := createPaymentRequestBody{
		MerchantID:      c.MerchantID,
		MerchantOrderID: in.MerchantOrderID,
		Amount:          in.Amount,
		MetaInfo:        in.MetaInfo,
		PaymentFlow: paymentFlow{
			Type:         "IFRAME",
			Message:      in.Message,
			MerchantUrls: merchantUrls{RedirectURL: in.RedirectURL},
		},
	}
	body, err := json.Marshal(&reqBody)
	if err != nil {
		return nil, err
	}
	res, err := c.inner.Post(fmt.Sprintf("%s/checkout/v2/pay", c.BaseURL), "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[gateway] Error creating payment request %s: %s\n", in.MerchantOrderID, err.Error())
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", res.StatusCode)
	}
	var out CreatePaymentResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.RedirectURL == "" {
		return nil, errors.New("gateway response is missing redirectUrl")
	}
	if out.OrderID == "" {
		return nil, errors.New("gateway response is missing orderId")
	}
	return &out, nil
}

func (c *GatewayClient) GetOrderStatus(merchantOrderId string) (*types.OrderStatus, error) {
	res, err := c.inner.Get(fmt.Sprintf("%s/checkout/v2/order/%s/status", c.BaseURL, merchantOrderId))
	if err != nil {
		log.Printf("[gateway] Error retrieving order status %s: %s\n", merchantOrderId, err.Error())
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", res.StatusCode)
	}
	var status types.OrderStatus
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}
