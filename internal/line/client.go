// Package line implements outbound delivery to the LINE Messaging API:
// reply-vs-push selection, global rate limiting, and quota exhaustion
// notices.
package line

import (
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Client is the narrow surface of the LINE Messaging API the deliverer
// needs.
type Client interface {
	Reply(req *messaging_api.ReplyMessageRequest) error
	Push(req *messaging_api.PushMessageRequest) error
	Leave(groupID string) error
	ShowLoading(req *messaging_api.ShowLoadingAnimationRequest) error
}

type apiClient struct {
	api *messaging_api.MessagingApiAPI
}

// NewClient creates a Client backed by the real Messaging API.
func NewClient(channelToken string) (Client, error) {
	api, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}
	return &apiClient{api: api}, nil
}

func (c *apiClient) Reply(req *messaging_api.ReplyMessageRequest) error {
	_, err := c.api.ReplyMessage(req)
	return err
}

func (c *apiClient) Push(req *messaging_api.PushMessageRequest) error {
	_, err := c.api.PushMessage(req, "")
	return err
}

func (c *apiClient) Leave(groupID string) error {
	_, err := c.api.LeaveGroup(groupID)
	return err
}

func (c *apiClient) ShowLoading(req *messaging_api.ShowLoadingAnimationRequest) error {
	_, err := c.api.ShowLoadingAnimation(req)
	return err
}
