package main

import (
	"github.com/DimitryIvaniuta/order-platform-sub001/common"
	"github.com/DimitryIvaniuta/order-platform-sub001/components/inventoryservice/internal/bootstrap"
)

func main() {
	common.InitLocalEnvConfig()
	bootstrap.Init().Run()
}
