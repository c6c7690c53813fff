// Package unifi talks to a UniFi Network controller to lock and unlock
// devices. A lock is a LAN_IN drop rule keyed on the device's MAC address;
// unlocking removes those rules again.
package unifi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/netcurfew/netcurfew/internal/domain"
)

// ActionClient applies lock state changes to a set of devices. The actor and
// reason identify who requested the change and why; they end up in rule
// comments and lock-state records.
type ActionClient interface {
	Apply(ctx context.Context, action domain.ScheduleAction, devices []*domain.Device, actor, reason string) ([]domain.ActionResult, error)
}

const (
	defaultRuleset   = "LAN_IN"
	baseRuleIndex    = 20000
	apiKeyHeaderName = "X-API-KEY"
)

// Client manages block rules through the UniFi controller REST API.
type Client struct {
	baseURL string
	apiKey  string
	site    string
	http    *http.Client
}

// Ensure Client implements ActionClient.
var _ ActionClient = (*Client)(nil)

// New creates a new UniFi controller client.
func New(baseURL, apiKey, site string, insecureSkipVerify bool) *Client {
	transport := http.DefaultTransport
	if insecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		site:    site,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}
}

// firewallRule is the subset of the controller's rule entity we manage.
type firewallRule struct {
	ID            string   `json:"_id,omitempty"`
	Name          string   `json:"name"`
	Ruleset       string   `json:"ruleset"`
	Action        string   `json:"action"`
	Protocol      string   `json:"protocol"`
	Enabled       bool     `json:"enabled"`
	RuleIndex     int      `json:"rule_index"`
	SrcMACAddress string   `json:"src_mac_address"`
	DstGroupIDs   []string `json:"dst_firewallgroup_ids,omitempty"`
	Comments      string   `json:"comments,omitempty"`
}

type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set(apiKeyHeaderName, c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrGatewayFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s returned %d: %s",
			domain.ErrGatewayFailed, method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var envelope apiEnvelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("%w: decoding response: %v", domain.ErrGatewayFailed, err)
		}
	}
	return envelope.Data, nil
}

func (c *Client) rulesEndpoint() string {
	return fmt.Sprintf("/api/s/%s/rest/firewallrule", c.site)
}

func (c *Client) listRules(ctx context.Context) ([]firewallRule, error) {
	data, err := c.do(ctx, http.MethodGet, c.rulesEndpoint(), nil)
	if err != nil {
		return nil, err
	}
	var rules []firewallRule
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("%w: decoding rules: %v", domain.ErrGatewayFailed, err)
		}
	}
	return rules, nil
}

// wanGroupID looks up the firewall group named "wan" so block rules can be
// scoped to internet destinations only. Returns empty when no such group
// exists; the rule then blocks everything.
func (c *Client) wanGroupID(ctx context.Context) string {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/s/%s/list/firewallgroup", c.site), nil)
	if err != nil {
		return ""
	}
	var groups []struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &groups); err != nil {
		return ""
	}
	for _, group := range groups {
		if strings.EqualFold(group.Name, "wan") {
			return group.ID
		}
	}
	return ""
}

func nextRuleIndex(rules []firewallRule) int {
	next := baseRuleIndex
	for _, rule := range rules {
		if rule.RuleIndex >= next {
			next = rule.RuleIndex + 1
		}
	}
	return next
}

func blockRuleName(device *domain.Device) string {
	return fmt.Sprintf("Block %s (%s)", device.Name, device.MAC)
}

// Apply creates or removes block rules so each device ends up in the
// requested lock state. Devices already in the requested state are reported
// as skipped. Per-device failures are reported in the result rather than
// aborting the batch.
func (c *Client) Apply(ctx context.Context, action domain.ScheduleAction, devices []*domain.Device, actor, reason string) ([]domain.ActionResult, error) {
	rules, err := c.listRules(ctx)
	if err != nil {
		return nil, err
	}

	byMAC := make(map[string][]firewallRule)
	for _, rule := range rules {
		if rule.SrcMACAddress != "" {
			mac := strings.ToLower(rule.SrcMACAddress)
			byMAC[mac] = append(byMAC[mac], rule)
		}
	}

	wanGroup := ""
	if action == domain.ActionLock {
		wanGroup = c.wanGroupID(ctx)
	}
	ruleIndex := nextRuleIndex(rules)

	results := make([]domain.ActionResult, 0, len(devices))
	for _, device := range devices {
		mac := strings.ToLower(device.MAC)
		existing := byMAC[mac]

		switch action {
		case domain.ActionLock:
			if len(existing) > 0 {
				results = append(results, domain.ActionResult{
					MAC: mac, Locked: true, Status: domain.ActionStatusSkipped,
					Message: "already locked",
				})
				continue
			}
			rule := firewallRule{
				Name:          blockRuleName(device),
				Ruleset:       defaultRuleset,
				Action:        "drop",
				Protocol:      "all",
				Enabled:       true,
				RuleIndex:     ruleIndex,
				SrcMACAddress: mac,
				Comments:      fmt.Sprintf("managed by netcurfew (%s: %s)", actor, reason),
			}
			if wanGroup != "" {
				rule.DstGroupIDs = []string{wanGroup}
			}
			if _, err := c.do(ctx, http.MethodPost, c.rulesEndpoint(), rule); err != nil {
				results = append(results, domain.ActionResult{
					MAC: mac, Locked: false, Status: domain.ActionStatusError,
					Message: err.Error(),
				})
				continue
			}
			ruleIndex++
			results = append(results, domain.ActionResult{
				MAC: mac, Locked: true, Status: domain.ActionStatusSuccess,
			})

		case domain.ActionUnlock:
			if len(existing) == 0 {
				results = append(results, domain.ActionResult{
					MAC: mac, Locked: false, Status: domain.ActionStatusSkipped,
					Message: "already unlocked",
				})
				continue
			}
			failed := false
			for _, rule := range existing {
				path := fmt.Sprintf("%s/%s", c.rulesEndpoint(), rule.ID)
				if _, err := c.do(ctx, http.MethodDelete, path, nil); err != nil {
					results = append(results, domain.ActionResult{
						MAC: mac, Locked: true, Status: domain.ActionStatusError,
						Message: err.Error(),
					})
					failed = true
					break
				}
			}
			if failed {
				continue
			}
			results = append(results, domain.ActionResult{
				MAC: mac, Locked: false, Status: domain.ActionStatusSuccess,
			})

		default:
			results = append(results, domain.ActionResult{
				MAC: mac, Status: domain.ActionStatusError,
				Message: fmt.Sprintf("unknown action %q", action),
			})
		}
	}
	return results, nil
}
