package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a BookVault repository",
	Long:  `Create an empty BookVault repository or reinitialize an existing one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 获取当前路径
		wd, err := os.Getwd()
		if err != nil {
			return err
		}

		// 2. 定义仓库路径 (.bv)
		repoPath := filepath.Join(wd, ".bv")
		storePath := filepath.Join(repoPath, "store")

		// 3. 检查是否已存在
		if _, err := os.Stat(repoPath); err == nil {
			fmt.Printf("⚠️  BookVault repository already exists in %s\n", repoPath)
			return nil
		}

		// 4. 创建目录结构
		// .bv/store 存放书签状态文件，.bv/meta.db 由首次运行时自动建表
		if err := os.MkdirAll(storePath, 0755); err != nil {
			return fmt.Errorf("failed to create repo directory: %w", err)
		}

		fmt.Printf("✅ Initialized empty BookVault repository in %s\n", repoPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
