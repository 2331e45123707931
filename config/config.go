// server/config/config.go
package config

import (
	"github.com/spf13/viper"
)

// --- Các struct con, phản ánh cấu trúc của YAML ---

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type MongoConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"dbName"`
}

type S3Config struct {
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"accessKeyID"`
	SecretAccessKey  string `mapstructure:"secretAccessKey"`
	CloudFrontDomain string `mapstructure:"cloudFrontDomain"`
}

// PlatformConfig mô tả platform đóng vai trò buyer trong các giao dịch
// buyback. BuybackRate là tỷ lệ chiết khấu duy nhất trên toàn hệ thống.
type PlatformConfig struct {
	BuyerID     string  `mapstructure:"buyerID"`
	BuyerName   string  `mapstructure:"buyerName"`
	BuybackRate float64 `mapstructure:"buybackRate"`
}

// --- Struct Config chính ---

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	S3       S3Config       `mapstructure:"s3"`
	Platform PlatformConfig `mapstructure:"platform"`
}

// LoadConfig đọc cấu hình từ file và ghi đè bằng các biến môi trường.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.dbName", "ecoset")
	viper.SetDefault("platform.buyerID", "PLATFORM")
	viper.SetDefault("platform.buyerName", "EcoSet Marketplace")
	viper.SetDefault("platform.buybackRate", 0.5)

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("mongo.uri", "MONGO_URI")
	viper.BindEnv("mongo.dbName", "MONGO_DBNAME")
	viper.BindEnv("s3.bucket", "S3_BUCKET")
	viper.BindEnv("s3.region", "S3_REGION")
	viper.BindEnv("s3.accessKeyID", "S3_ACCESS_KEY_ID")
	viper.BindEnv("s3.secretAccessKey", "S3_SECRET_ACCESS_KEY")
	viper.BindEnv("s3.cloudFrontDomain", "S3_CLOUDFRONT_DOMAIN")
	viper.BindEnv("platform.buyerID", "PLATFORM_BUYER_ID")
	viper.BindEnv("platform.buyerName", "PLATFORM_BUYER_NAME")
	viper.BindEnv("platform.buybackRate", "PLATFORM_BUYBACK_RATE")

	// Nếu file không tồn tại, Viper sẽ chỉ sử dụng defaults và env.
	err = viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
