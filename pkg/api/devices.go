package api

import (
	"context"
	"net/http"

	"github.com/AndrewKorobchuk/tsd/internal/model"
)

// DeviceRegisterRequest registers this terminal. It is also the body of
// the device update call.
type DeviceRegisterRequest struct {
	DeviceID       string `json:"device_id"`
	DeviceName     string `json:"device_name"`
	DeviceModel    string `json:"device_model"`
	AndroidVersion string `json:"android_version"`
	AppVersion     string `json:"app_version"`
}

// DeviceRegisterResponse carries the prefix assigned to the device
type DeviceRegisterResponse struct {
	ID       int64  `json:"id"`
	DeviceID string `json:"device_id"`
	Prefix   string `json:"prefix"`
	IsActive bool   `json:"is_active"`
}

// DocumentNumberRequest asks the server for the next document number
type DocumentNumberRequest struct {
	DeviceID     string `json:"device_id"`
	DocumentType string `json:"document_type"`
}

type DocumentNumberResponse struct {
	DocumentNumber string `json:"document_number"`
	NextCounter    int    `json:"next_counter"`
}

func (c *Client) RegisterDevice(ctx context.Context, token string, in DeviceRegisterRequest) (*DeviceRegisterResponse, error) {
	var out DeviceRegisterResponse
	err := c.do(ctx, request{
		op:     "register_device",
		method: http.MethodPost,
		path:   "tsd-devices/register",
		token:  token,
		body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MyDevice(ctx context.Context, token string) (*model.TsdDevice, error) {
	var out model.TsdDevice
	if err := c.getOne(ctx, "my_device", "tsd-devices/me", token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateMyDevice(ctx context.Context, token string, in DeviceRegisterRequest) (*model.TsdDevice, error) {
	var out model.TsdDevice
	err := c.do(ctx, request{
		op:     "update_my_device",
		method: http.MethodPut,
		path:   "tsd-devices/me",
		token:  token,
		body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListDevices(ctx context.Context, token string, params ListParams) ([]model.TsdDevice, error) {
	var out []model.TsdDevice
	err := c.do(ctx, request{
		op:     "list_devices",
		method: http.MethodGet,
		path:   "tsd-devices/",
		query:  params.values(),
		token:  token,
	}, &out)
	return out, err
}

func (c *Client) NextDocumentNumber(ctx context.Context, token string, in DocumentNumberRequest) (*DocumentNumberResponse, error) {
	if in.DocumentType == "" {
		in.DocumentType = "input_balance"
	}

	var out DocumentNumberResponse
	err := c.do(ctx, request{
		op:     "next_document_number",
		method: http.MethodPost,
		path:   "tsd-devices/next-document-number",
		token:  token,
		body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
