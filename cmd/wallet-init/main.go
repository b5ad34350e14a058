package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"

	"github.com/racebot/gorace/pkg/secretstore"
)

// wallet-init：从助记词派生车队签名钱包，写入加密密钥库。
// 助记词从 stdin 读取，避免进入 shell 历史。
func main() {
	_ = godotenv.Load()

	var (
		storeDir     = flag.String("store", getenv("FLEET_SECRET_DIR", "data/secrets"), "密钥库目录")
		derivPath    = flag.String("path", "m/44'/60'/0'/0/0", "BIP-44 派生路径")
		keepMnemonic = flag.Bool("keep-mnemonic", false, "同时把助记词写入密钥库（默认只存私钥）")
		force        = flag.Bool("force", false, "覆盖已存在的钱包")
	)
	flag.Parse()

	masterKey, err := secretstore.ParseKey(os.Getenv("FLEET_MASTER_KEY"))
	if err != nil {
		fatal(fmt.Errorf("解析 FLEET_MASTER_KEY 失败: %w", err))
	}
	if masterKey == nil {
		fatal(errors.New("FLEET_MASTER_KEY is required (32 bytes, base64 or hex)"))
	}

	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *storeDir,
		EncryptionKey: masterKey,
	})
	if err != nil {
		fatal(fmt.Errorf("打开密钥库失败: %w", err))
	}
	defer store.Close()

	if _, found, _ := store.GetString(secretstore.KeyWalletPrivateKey); found && !*force {
		fatal(errors.New("密钥库中已有钱包（用 -force 覆盖）"))
	}

	fmt.Fprintln(os.Stderr, "请输入助记词（12/15/18/21/24 个单词），输入完成后回车：")
	mnemonic := strings.TrimSpace(readLine())
	if mnemonic == "" {
		fatal(errors.New("mnemonic is empty"))
	}

	privHex, address, err := derive(mnemonic, *derivPath)
	if err != nil {
		fatal(err)
	}

	if err := store.SetString(secretstore.KeyWalletPrivateKey, privHex); err != nil {
		fatal(err)
	}
	if err := store.SetString(secretstore.KeyWalletAddress, address); err != nil {
		fatal(err)
	}
	if *keepMnemonic {
		if err := store.SetString(secretstore.KeyWalletMnemonic, mnemonic); err != nil {
			fatal(err)
		}
	}

	fmt.Fprintf(os.Stderr, "✅ 钱包已写入密钥库 %s\n地址: %s\n", *storeDir, address)
}

func derive(mnemonic, derivationPath string) (privHex, address string, err error) {
	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return "", "", fmt.Errorf("invalid mnemonic: %w", err)
	}
	path, err := hdwallet.ParseDerivationPath(derivationPath)
	if err != nil {
		return "", "", fmt.Errorf("invalid derivation path: %w", err)
	}
	acct, err := w.Derive(path, false)
	if err != nil {
		return "", "", fmt.Errorf("derive failed: %w", err)
	}
	pk, err := w.PrivateKeyHex(acct)
	if err != nil {
		return "", "", fmt.Errorf("private key failed: %w", err)
	}
	return pk, strings.ToLower(acct.Address.Hex()), nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func readLine() string {
	br := bufio.NewReader(os.Stdin)
	s, _ := br.ReadString('\n')
	return strings.TrimSpace(s)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
