package mqtt

import (
	"net"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap"
)

// lookupHost 便于测试替换
var lookupHost = net.LookupHost

// ResolveBroker 解析 broker 地址
// 顺序：原主机名 -> 去掉 ".local" 后缀 -> 环境变量 BROKER_IP -> 原样返回
// mDNS 在部分树莓派镜像上不可用，因此需要回退
func ResolveBroker(broker string, logger *zap.Logger) string {
	u, err := url.Parse(broker)
	if err != nil || u.Host == "" {
		return broker
	}
	host := u.Hostname()
	port := u.Port()

	if net.ParseIP(host) != nil {
		return broker
	}
	if _, err := lookupHost(host); err == nil {
		return broker
	}

	candidates := []string{}
	if strings.HasSuffix(host, ".local") {
		candidates = append(candidates, strings.TrimSuffix(host, ".local"))
	}
	for _, candidate := range candidates {
		if addrs, err := lookupHost(candidate); err == nil && len(addrs) > 0 {
			return rebuild(u, addrs[0], port, broker, logger)
		}
	}

	if ip := strings.TrimSpace(os.Getenv("BROKER_IP")); ip != "" {
		return rebuild(u, ip, port, broker, logger)
	}

	return broker
}

func rebuild(u *url.URL, host, port, original string, logger *zap.Logger) string {
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}
	resolved := u.String()
	if logger != nil {
		logger.Info("Broker resolved",
			zap.String("broker", original),
			zap.String("resolved", resolved),
		)
	}
	return resolved
}
