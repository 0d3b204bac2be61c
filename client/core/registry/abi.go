package registry

// RegistryABI 版本化 ESG 登记合约的 ABI
//
// 合约本身由外部部署和维护，这里只保留客户端用到的方法和事件片段。
const RegistryABI = `[
  {
    "type": "function",
    "name": "submitReport",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "kpiTypeId", "type": "uint256"},
      {"name": "reportingYear", "type": "uint16"},
      {"name": "value", "type": "int256"},
      {"name": "metadataCid", "type": "bytes32"}
    ],
    "outputs": [
      {"name": "version", "type": "uint64"}
    ]
  },
  {
    "type": "function",
    "name": "getLatestReport",
    "stateMutability": "view",
    "inputs": [
      {"name": "owner", "type": "address"},
      {"name": "kpiTypeId", "type": "uint256"},
      {"name": "reportingYear", "type": "uint16"}
    ],
    "outputs": [
      {"name": "value", "type": "int256"},
      {"name": "metadataCid", "type": "bytes32"},
      {"name": "version", "type": "uint64"},
      {"name": "timestamp", "type": "uint64"},
      {"name": "exists", "type": "bool"}
    ]
  },
  {
    "type": "function",
    "name": "getVersionCount",
    "stateMutability": "view",
    "inputs": [
      {"name": "owner", "type": "address"},
      {"name": "kpiTypeId", "type": "uint256"},
      {"name": "reportingYear", "type": "uint16"}
    ],
    "outputs": [
      {"name": "", "type": "uint64"}
    ]
  },
  {
    "type": "function",
    "name": "getReportVersion",
    "stateMutability": "view",
    "inputs": [
      {"name": "owner", "type": "address"},
      {"name": "kpiTypeId", "type": "uint256"},
      {"name": "reportingYear", "type": "uint16"},
      {"name": "version", "type": "uint64"}
    ],
    "outputs": [
      {"name": "value", "type": "int256"},
      {"name": "metadataCid", "type": "bytes32"},
      {"name": "timestamp", "type": "uint64"}
    ]
  },
  {
    "type": "event",
    "name": "ReportSubmitted",
    "anonymous": false,
    "inputs": [
      {"name": "owner", "type": "address", "indexed": true},
      {"name": "kpiTypeId", "type": "uint256", "indexed": false},
      {"name": "reportingYear", "type": "uint16", "indexed": true},
      {"name": "value", "type": "int256", "indexed": false},
      {"name": "metadataCid", "type": "bytes32", "indexed": true},
      {"name": "version", "type": "uint64", "indexed": false},
      {"name": "timestamp", "type": "uint64", "indexed": false}
    ]
  }
]`

// 方法与事件名称
const (
	MethodSubmitReport     = "submitReport"
	MethodGetLatestReport  = "getLatestReport"
	MethodGetVersionCount  = "getVersionCount"
	MethodGetReportVersion = "getReportVersion"

	EventReportSubmitted = "ReportSubmitted"
)
