package devops

import (
	"context"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// DBEntry is one database server in the central SSM parameter. Tenants
// are schemas inside the server an entry points at.
type DBEntry struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

var (
	once    sync.Once
	dbList  []DBEntry
	loadErr error
)

// LoadDBConfig fetches the YAML database list from SSM Parameter Store,
// once per process.
func LoadDBConfig(ctx context.Context) ([]DBEntry, error) {
	once.Do(func() {
		paramName := "rostera-databases"

		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			loadErr = fmt.Errorf("load aws config: %w", err)
			return
		}

		client := ssm.NewFromConfig(cfg)

		out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(paramName),
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			loadErr = fmt.Errorf("get parameter: %w", err)
			return
		}

		var parsed []DBEntry
		if err := yaml.Unmarshal([]byte(*out.Parameter.Value), &parsed); err != nil {
			loadErr = fmt.Errorf("unmarshal yaml: %w", err)
			return
		}

		dbList = parsed
	})

	return dbList, loadErr
}

// DSN builds the pool DSN for an entry, without a schema; the tenant
// schema is selected per request.
func (e DBEntry) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/?parseTime=true", e.Username, e.Password, e.Host)
}
