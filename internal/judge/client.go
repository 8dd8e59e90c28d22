package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/palemoky/letter-challenge/internal/protocol"
)

// Client 远程判定服务客户端
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient 创建判定客户端，url 为空表示未配置远程判定
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Enabled 是否配置了远程判定
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Validate 单词判定
func (c *Client) Validate(ctx context.Context, req protocol.ValidateRequest) (*protocol.ValidateResponse, error) {
	var resp protocol.ValidateResponse
	if err := c.post(ctx, "/validate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValidateBatch 批量判定（一个回合一批）
func (c *Client) ValidateBatch(ctx context.Context, req protocol.BatchValidateRequest) (*protocol.BatchValidateResponse, error) {
	var resp protocol.BatchValidateResponse
	if err := c.post(ctx, "/validate/batch", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// post 发送 JSON 请求并解码响应
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("judge status: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
