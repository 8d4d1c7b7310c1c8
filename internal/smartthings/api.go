package smartthings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Command is one entry of a device commands request
type Command struct {
	Component  string        `json:"component"`
	Capability string        `json:"capability"`
	Command    string        `json:"command"`
	Arguments  []interface{} `json:"arguments"`
}

type commandsRequest struct {
	Commands []Command `json:"commands"`
}

// MainCommand builds a command addressed to the main component with no
// arguments, which is all the capture sequence needs
func MainCommand(capability, command string) Command {
	return Command{
		Component:  "main",
		Capability: capability,
		Command:    command,
		Arguments:  []interface{}{},
	}
}

// GetDevice fetches the device description including its capability list
func (c *Client) GetDevice(ctx context.Context, h Handle, token string) (*Device, error) {
	url := fmt.Sprintf("%s/devices/%s", h.APIBase, h.DeviceID)

	status, body, err := c.JSON(ctx, http.MethodGet, url, token, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Body: string(body)}
	}

	var device Device
	if err := json.Unmarshal(body, &device); err != nil {
		return nil, fmt.Errorf("failed to parse device response: %w", err)
	}
	return &device, nil
}

// GetStatus fetches the full device status document
func (c *Client) GetStatus(ctx context.Context, h Handle, token string) (*DeviceStatus, error) {
	url := fmt.Sprintf("%s/devices/%s/status", h.APIBase, h.DeviceID)

	status, body, err := c.JSON(ctx, http.MethodGet, url, token, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Body: string(body)}
	}

	var deviceStatus DeviceStatus
	if err := json.Unmarshal(body, &deviceStatus); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}
	return &deviceStatus, nil
}

// SendCommands posts commands to the device commands endpoint
func (c *Client) SendCommands(ctx context.Context, h Handle, token string, commands ...Command) error {
	url := fmt.Sprintf("%s/devices/%s/commands", h.APIBase, h.DeviceID)

	payload, err := json.Marshal(commandsRequest{Commands: commands})
	if err != nil {
		return fmt.Errorf("failed to marshal commands: %w", err)
	}

	status, body, err := c.JSON(ctx, http.MethodPost, url, token, payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &APIError{StatusCode: status, Body: string(body)}
	}
	return nil
}
