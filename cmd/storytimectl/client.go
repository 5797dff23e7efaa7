package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiFlag).
		SetHeader("Accept", "application/json").
		SetTimeout(15 * time.Second)
}

// doGet fetches a path and returns pretty-printed JSON.
func doGet(path string, query map[string]string) (string, error) {
	resp, err := newClient().R().SetQueryParams(query).Get(path)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() >= 300 {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	return prettyJSON(resp.Body())
}

// doPost posts to a path and returns pretty-printed JSON.
func doPost(path string) (string, error) {
	resp, err := newClient().R().Post(path)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() >= 300 {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	return prettyJSON(resp.Body())
}

func prettyJSON(raw []byte) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw), nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw), nil
	}
	return string(out), nil
}
