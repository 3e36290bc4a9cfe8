package config

import (
	"errors"
	"flag"
	"net"
	"regexp"
	"strconv"
	"strings"
)

type Config struct {
	Addr     string
	APIUrl   string
	LoginUrl string
	Debug    bool
}

func ParseFlags() (cfg Config, err error) {
	var host string
	flag.StringVar(&host, "host", "0.0.0.0", "listen host name (default 0.0.0.0)")
	var port uint
	flag.UintVar(&port, "port", 8080, "listen port number (default 8080)")
	flag.StringVar(&cfg.APIUrl, "api-url", "", "base URL of the OSCA backend API")
	flag.StringVar(&cfg.LoginUrl, "login-url", "", "staff login page URL (default <api-url>/login)")
	flag.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level")
	flag.Parse()

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))

	if cfg.APIUrl == "" {
		err = errors.New("missing parameter -api-url")
		return
	}
	cfg.APIUrl = strings.TrimRight(cfg.APIUrl, "/")
	if cfg.LoginUrl == "" {
		cfg.LoginUrl = cfg.APIUrl + "/login"
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
