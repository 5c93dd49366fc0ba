package flags

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatRAW  = "raw"
)

const DefaultIndex = "sample-index"

// Flags holds the connection settings shared by all commands. Every field
// can be set from the environment or on the command line.
type Flags struct {
	ElasticURL       string `cli:"connect" cliAlt:"c" env:"ES_HOST" usage:"ElasticSearch URL"`
	ElasticUser      string `cli:"user" env:"ES_USER" usage:"ElasticSearch Username"`
	ElasticPass      string `cli:"pass" env:"ES_PASSWORD" usage:"ElasticSearch Password"`
	ElasticVerifySSL bool   `cli:"verifySSL" env:"ES_VERIFY_SSL" usage:"Verify SSL certificate"`
	ElasticClientCrt string `cli:"clientCrt" env:"ES_CLIENT_CRT" usage:"Path to client certificate file"`
	ElasticClientKey string `cli:"clientKey" env:"ES_CLIENT_KEY" usage:"Path to client key file"`
	ElasticVersion   int    `cli:"esversion" env:"ES_VERSION" usage:"ElasticSearch major version [7|8|9]"`
	Index            string `cli:"index" cliAlt:"i" env:"ES_INDEX" usage:"ElasticSearch Index"`
	Trace            bool   `cli:"trace" env:"ES_TRACE" usage:"Log all requests to ElasticSearch"`
	LogEnv           string `cli:"logenv" env:"LOG_ENV" usage:"Log format [dev|prod]"`
	LogLevel         string `cli:"loglevel" env:"LOG_LEVEL" usage:"Log level [debug|info|warn|error]"`
}

// SeedFlags are the options of the seed command.
type SeedFlags struct {
	Refresh bool `cli:"refresh" usage:"Refresh the index after seeding"`
}

// VerifyFlags are the options of the verify command.
type VerifyFlags struct {
	Cases string `cli:"cases" usage:"Comma separated list of cases to run, all if empty"`
	Keep  bool   `cli:"keep" usage:"Keep the index after the last case"`
}

// ExportFlags are the options of the export command.
type ExportFlags struct {
	RAWQuery   string `cli:"rawquery" cliAlt:"r" usage:"ElasticSearch raw query string"`
	Query      string `cli:"query" cliAlt:"q" usage:"Lucene query same that is used in Kibana search input"`
	OutFormat  string `cli:"outformat" cliAlt:"f" usage:"Format of the output data. [json|csv|raw]"`
	Outfile    string `cli:"outfile" cliAlt:"o" usage:"Path to output file, - for stdout"`
	ScrollSize int    `cli:"size" usage:"Number of documents that will be returned per shard"`
	Fieldlist  string `cli:"fields" usage:"Fields to include in export as comma separated list"`
	Fields     []string
}

func Defaults() Flags {
	return Flags{
		ElasticURL:       "http://localhost:9200",
		ElasticVerifySSL: true,
		ElasticVersion:   8,
		Index:            DefaultIndex,
		LogEnv:           "dev",
		LogLevel:         "info",
	}
}

func ExportDefaults() ExportFlags {
	return ExportFlags{
		Query:      "*",
		OutFormat:  FormatCSV,
		Outfile:    "-",
		ScrollSize: 1000,
		Fieldlist:  "title,body,tag",
	}
}

func (f *Flags) Validate() error {
	if f.ElasticURL == "" {
		return errors.New("ElasticSearch URL is required")
	}
	if _, err := url.Parse(f.ElasticURL); err != nil {
		return fmt.Errorf("invalid ElasticSearch URL: %w", err)
	}
	switch f.ElasticVersion {
	case 7, 8, 9:
	default:
		return fmt.Errorf("unsupported ElasticSearch version %d", f.ElasticVersion)
	}
	if f.Index == "" {
		return errors.New("index is required")
	}
	if f.ElasticPass != "" && f.ElasticUser == "" {
		return errors.New("password given without user")
	}
	if (f.ElasticClientCrt == "") != (f.ElasticClientKey == "") {
		return errors.New("client certificate and key must be given together")
	}
	return nil
}

// InsecureRemote reports whether certificate verification is disabled for
// an endpoint other than the local machine.
func (f *Flags) InsecureRemote() bool {
	if f.ElasticVerifySSL {
		return false
	}
	u, err := url.Parse(f.ElasticURL)
	if err != nil || u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return false
	}
	ip := net.ParseIP(host)
	return ip == nil || !ip.IsLoopback()
}
