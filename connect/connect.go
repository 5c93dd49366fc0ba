package connect

import (
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pteich/elastic-sample-data/elastic"
	elasticv7 "github.com/pteich/elastic-sample-data/elastic/v7"
	elasticv8 "github.com/pteich/elastic-sample-data/elastic/v8"
	elasticv9 "github.com/pteich/elastic-sample-data/elastic/v9"
	"github.com/pteich/elastic-sample-data/flags"
	"github.com/pteich/elastic-sample-data/logger"
)

// HTTPClient builds the HTTP client used by every store version.
func HTTPClient(conf *flags.Flags) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: !conf.ElasticVerifySSL,
	}

	if conf.ElasticClientCrt != "" && conf.ElasticClientKey != "" {
		cert, err := tls.LoadX509KeyPair(conf.ElasticClientCrt, conf.ElasticClientKey)
		if err != nil {
			return nil, err
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = tlsCfg

	return &http.Client{Transport: tr}, nil
}

// New returns the store implementation for the configured major version.
func New(conf *flags.Flags, log *zap.Logger) (elastic.Store, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if conf.InsecureRemote() {
		log.Warn("certificate verification is disabled for a remote endpoint", zap.String("url", conf.ElasticURL))
	}

	httpClient, err := HTTPClient(conf)
	if err != nil {
		return nil, err
	}

	log.Debug("connecting to elasticsearch",
		zap.String("url", conf.ElasticURL),
		zap.Int("version", conf.ElasticVersion),
		zap.Bool("verify_ssl", conf.ElasticVerifySSL),
		zap.Bool("basic_auth", conf.ElasticUser != ""),
	)

	switch conf.ElasticVersion {
	case 7:
		esOpts := []elasticv7.ClientOptionFunc{
			elasticv7.SetHttpClient(httpClient),
			elasticv7.SetSniff(false),
			elasticv7.SetHealthcheckInterval(60 * time.Second),
			elasticv7.SetErrorLog(logger.StdLog(log, zapcore.ErrorLevel, "elastic")),
		}

		if conf.Trace {
			esOpts = append(esOpts, elasticv7.SetTraceLog(logger.StdLog(log, zapcore.DebugLevel, "elastic.trace")))
		}

		if conf.ElasticUser != "" {
			esOpts = append(esOpts, elasticv7.SetBasicAuth(conf.ElasticUser, conf.ElasticPass))
		}

		client, err := elasticv7.NewClient(conf.ElasticURL, esOpts)
		if err != nil {
			return nil, err
		}
		return client, nil

	case 8:
		cfg := elasticv8.NewConfig(conf.ElasticURL, conf.ElasticUser, conf.ElasticPass, httpClient, traceLogger(conf))
		client, err := elasticv8.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil

	case 9:
		cfg := elasticv9.NewConfig(conf.ElasticURL, conf.ElasticUser, conf.ElasticPass, httpClient, traceLogger(conf))
		client, err := elasticv9.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, errors.New("unsupported ElasticSearch version")
	}
}

func traceLogger(conf *flags.Flags) elastictransport.Logger {
	if !conf.Trace {
		return nil
	}
	return &elastictransport.TextLogger{
		Output:             os.Stderr,
		EnableRequestBody:  true,
		EnableResponseBody: true,
	}
}
