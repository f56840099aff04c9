package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		// 如果用户指定了文件，直接使用
		viper.SetConfigFile(cfgFile)
	} else {
		// 否则按优先级搜索
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：
		// 1. 当前目录
		viper.AddConfigPath(".")
		// 2. 当前目录下的 .bv
		viper.AddConfigPath(".bv")
		// 3. 用户主目录下的 .bv
		viper.AddConfigPath(filepath.Join(home, ".bv"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (BV_DATABASE_DRIVER 等)
	viper.SetEnvPrefix("BV")
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 配置文件不存在不算错 (可以全靠默认值和环境变量)，
		// 格式错才算错
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}

	return nil
}

func setDefaults() {
	// 数据库默认值: sqlite 零配置即可用，postgres 要自己给 DSN
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	// 存储默认值
	wd, _ := os.Getwd()
	viper.SetDefault("storage.path", filepath.Join(wd, ".bv", "store"))
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.cache.redis_url", "")

	// S3 (storage.type = "s3" 时生效)
	viper.SetDefault("storage.s3.endpoint", "")
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("storage.s3.bucket", "")
	viper.SetDefault("storage.s3.prefix", "")

	// 提交图
	viper.SetDefault("mutation.enabled", false)

	// 远端书签
	viper.SetDefault("remotenames.alias_default", true)
	viper.SetDefault("remotenames.selectivepull", true)
	viper.SetDefault("remotenames.selectivepulldefault", []string{"main"})

	// paths.* 是 远端别名 -> URL 的映射，没有内置默认项
	viper.SetDefault("paths", map[string]string{})
}

// Paths 返回配置的远端别名表 (别名 -> URL)
func Paths() map[string]string {
	return viper.GetStringMapString("paths")
}
