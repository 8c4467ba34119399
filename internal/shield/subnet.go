package shield

import (
	"context"
	"log"
	"strings"
	"time"
)

// SubnetMonitor periodically clusters blocked IPs by /24 and escalates
// risk for the rest of a subnet once enough of it is already blocked
// (spec.md §4.9 step 5). Grounded on the teacher's ticker-driven
// cleanupLoop in internal/api/ratelimit.go, generalized from "expire idle
// buckets" to "scan shared block state and raise an alert".
type SubnetMonitor struct {
	shield  *Shield
	alertFn func(subnet string, blockCount int)
}

// NewSubnetMonitor builds a monitor over shield. alertFn is called with
// the /24 prefix and block count whenever a cluster is detected; pass nil
// to only perform the escalation with no external notification.
func NewSubnetMonitor(s *Shield, alertFn func(subnet string, blockCount int)) *SubnetMonitor {
	return &SubnetMonitor{shield: s, alertFn: alertFn}
}

// Run scans every SubnetScanInterval until ctx is cancelled.
func (m *SubnetMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(SubnetScanInterval)
	defer ticker.Stop()

	log.Println("[shield] subnet cluster monitor started")
	for {
		select {
		case <-ctx.Done():
			log.Println("[shield] subnet cluster monitor stopping")
			return
		case <-ticker.C:
			if err := m.scanOnce(ctx); err != nil {
				log.Printf("[shield] subnet scan failed: %v", err)
			}
		}
	}
}

func (m *SubnetMonitor) scanOnce(ctx context.Context) error {
	keys, err := m.shield.cache.Keys(ctx, "block:*")
	if err != nil {
		return err
	}

	bySubnet := map[string][]string{}
	for _, key := range keys {
		ip := strings.TrimPrefix(key, "block:")
		subnet := slash24(ip)
		if subnet == "" {
			continue
		}
		bySubnet[subnet] = append(bySubnet[subnet], ip)
	}

	for subnet, ips := range bySubnet {
		if len(ips) < SubnetClusterThreshold {
			continue
		}
		log.Printf("[shield] subnet-attack: %s has %d blocked IPs", subnet, len(ips))
		if m.alertFn != nil {
			m.alertFn(subnet, len(ips))
		}
		m.escalateSubnet(ctx, subnet)
	}
	return nil
}

// escalateSubnet raises the risk score for every known IP in subnet that
// isn't blocked yet, so the remaining members of an attacking /24 trip the
// threshold faster.
func (m *SubnetMonitor) escalateSubnet(ctx context.Context, subnet string) {
	riskKeys, err := m.shield.cache.Keys(ctx, "risk:"+subnet+"*")
	if err != nil {
		log.Printf("[shield] failed to list risk keys for %s: %v", subnet, err)
		return
	}
	for _, key := range riskKeys {
		ip := strings.TrimPrefix(key, "risk:")
		blockKey := "block:" + ip
		if _, found, _ := m.shield.cache.Get(ctx, blockKey); found {
			continue
		}
		if _, err := m.shield.cache.IncrBy(ctx, key, PenaltyAdminFlag/2); err != nil {
			log.Printf("[shield] failed to escalate risk for %s: %v", ip, err)
			continue
		}
	}
}

// slash24 returns the dotted /24 prefix of an IPv4 address ("a.b.c.")
// or "" for anything else (IPv6 clustering is out of scope).
func slash24(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ""
	}
	return parts[0] + "." + parts[1] + "." + parts[2] + "."
}
