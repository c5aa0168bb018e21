package main

import (
	"log"

	"github.com/bricspay/transfer-core/chaincode/transfer-anchor/chaincode"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

func main() {
	anchorChaincode, err := contractapi.NewChaincode(&chaincode.SmartContract{})
	if err != nil {
		log.Panicf("Error creating transfer anchor chaincode: %v", err)
	}

	if err := anchorChaincode.Start(); err != nil {
		log.Panicf("Error starting transfer anchor chaincode: %v", err)
	}
}
