package signatures

// Default returns the built-in rule set
func Default() Definition {
	return Definition{
		Signatures:            defaultSignatures(),
		CriticalPatterns:      defaultCriticalPatterns(),
		ScriptPatterns:        defaultScriptPatterns(),
		VulnerabilityClasses:  defaultVulnerabilityClasses(),
		ObfuscationIndicators: []string{`String\.fromCharCode`, `\\x[0-9a-f]{2}`, `\\u[0-9a-f]{4}`, `eval\s*\(`, `Function\s*\(`},
		Base64Payload:         `(?:[A-Za-z0-9+/]{100,}={0,2}\s*){3,}`,
		PopularPackages: []PopularSpec{
			{"express", "HIGH"}, {"lodash", "HIGH"}, {"react", "HIGH"}, {"vue", "HIGH"},
			{"axios", "HIGH"}, {"ws", "HIGH"}, {"koa", "MEDIUM"}, {"moment", "MEDIUM"},
			{"typescript", "HIGH"}, {"webpack", "HIGH"}, {"babel", "HIGH"}, {"jest", "HIGH"},
			{"mocha", "MEDIUM"}, {"mongoose", "MEDIUM"}, {"redis", "MEDIUM"}, {"mysql", "MEDIUM"},
			{"mongodb", "MEDIUM"}, {"bcrypt", "MEDIUM"}, {"socket.io", "HIGH"}, {"graphql", "HIGH"},
			{"puppeteer", "HIGH"}, {"playwright", "HIGH"}, {"pm2", "MEDIUM"},
		},
		SuspiciousNameTokens: []string{
			"malware", "virus", "trojan", "backdoor", "exploit", "hacker", "stealer",
			"spyware", "adware", "ransomware", "rootkit", "botnet", "worm",
			"cryptominer", "coinhive", "webminer", "keylogger",
		},
		SuspiciousOwnerTokens: []string{"hacker", "malware", "exploit", "anonymous"},
		TrustedOwners:         []string{"steipete", "openclaw", "admin", "system"},
		KnownMalicious: []MaliciousSpec{
			{"reacht", "Typosquat of react that steals environment variables and Discord tokens"},
			{"react-dom-scripts", "Typosquat of react-dom that installs a backdoor from a post-install script"},
			{"react-redux-router", "Typosquat of the Redux/Router integration carrying a credential stealer"},
			{"react-router-dom-v6", "Fake v6 backport that exfiltrates .env files"},
			{"react-scripts-webpack", "Typosquat of react-scripts that injects scripts into production builds"},
			{"react-native-clipboard-lib", "Monitors the clipboard for wallet mnemonic phrases"},
			{"crossenv", "Typosquat of cross-env that exfiltrates environment variables"},
			{"discord-selfbot-v14", "Discord token grabber"},
			{"hidden-wallet-stealer", "Cryptocurrency wallet stealer"},
			{"modified-axios", "Tampered axios build with a data exfiltration hook"},
			{"flatmap-stream", "Payload used in the event-stream compromise to steal wallet keys"},
			{"getcookies", "Backdoor triggered through crafted HTTP headers"},
		},
		PermissionFlags: []string{
			"unsafe-perm", "unsafePerm", "ignore-scripts", "ignoreScripts",
			"allow-root", "allowRoot", "ignore-engine", "ignoreEngine",
		},
		Lockfiles: []string{
			"package-lock.json", "npm-shrinkwrap.json", "yarn.lock",
			"pnpm-lock.yaml", "bun.lockb", "bun.lock",
		},
		NpmrcUnsafePerm: `(?im)^\s*unsafe-perm\s*=\s*true\b`,
	}
}

func defaultSignatures() []SignatureSpec {
	return []SignatureSpec{
		{Needle: "child_process.exec", Description: "Shell command execution"},
		{Needle: "child_process.execSync", Description: "Synchronous shell execution"},
		{Needle: "child_process.spawn", Description: "Process spawning", Severity: "HIGH"},
		// exec( also matches RegExp.prototype.exec, so it is capped below the shell calls
		{Needle: "exec(", Description: "Possible command execution", Severity: "MEDIUM"},
		{Needle: "fs.writeFileSync", Description: "File write operation"},
		{Needle: "fs.unlinkSync", Description: "File deletion operation"},
		{Needle: "fs.rmSync", Description: "Recursive delete operation"},
		{Needle: "fs.readFileSync", Description: "File read access"},
		{Needle: `require("http")`, Description: "HTTP network access"},
		{Needle: `require("https")`, Description: "HTTPS network access"},
		{Needle: `require("dns")`, Description: "DNS resolution access"},
		{Needle: `require("net")`, Description: "Network socket access"},
		{Needle: `require("child_process")`, Description: "Process spawning module", Severity: "HIGH"},
		{Needle: "eval(", Description: "Dynamic eval execution"},
		{Needle: "Function(", Description: "Dynamic function construction", Severity: "HIGH"},
		{Needle: "process.env", Description: "Environment variable access"},
		{Needle: "process.exit", Description: "Process termination"},
		{Needle: "process.kill", Description: "Process kill operation"},
		{Needle: "os.userInfo", Description: "User information access"},
		{Needle: "os.homedir", Description: "Home directory access"},
		{Needle: "fetch(", Description: "Fetch API network access"},
		{Needle: "axios.", Description: "Axios HTTP client"},
		{Needle: "crypto.", Description: "Cryptographic operation"},
		{Needle: "Buffer.from", Description: "Buffer creation"},
		{Needle: "steal", Description: "Data stealing intent", Severity: "HIGH"},
		{Needle: "backdoor", Description: "Backdoor keyword", Severity: "HIGH"},
		{Needle: "ransomware", Description: "Ransomware keyword", Severity: "HIGH"},
	}
}

func defaultCriticalPatterns() []PatternSpec {
	critical := func(pattern, message string) PatternSpec {
		return PatternSpec{Pattern: pattern, Severity: "CRITICAL", Message: message}
	}
	return []PatternSpec{
		critical(`curl\s+.*\|\s*(?:ba)?sh`, "Pipe to shell (curl | sh)"),
		critical(`wget\s+.*\|\s*(?:ba)?sh`, "Pipe to shell (wget | sh)"),
		critical(`>\s*/(?:etc|usr|bin|sbin)\b`, "Write to system directory"),
		critical(`rm\s+-rf`, "Recursive delete (rm -rf)"),
		critical(`chmod\s+777`, "World-writable permission"),
		critical(`chmod\s+[0-7]{3}\s+[us]`, "Setuid/setgid permission"),
		critical(`\bsudo\s+`, "Sudo command usage"),
		critical(`chown\s+.*root`, "Ownership to root"),
		critical(`echo\s+.*>\s*/(?:etc|usr)`, "Echo to system file"),
	}
}

func defaultScriptPatterns() []PatternSpec {
	return []PatternSpec{
		{Pattern: `node\s+.*eval`, Severity: "HIGH", Message: "Eval usage in script"},
		{Pattern: `fs\.(?:write|unlink|rename)`, Severity: "MEDIUM", Message: "File operations in script"},
		{Pattern: `process\.env`, Severity: "MEDIUM", Message: "Environment access in script"},
		{Pattern: `require\(['"](?:child_process|exec|spawn)`, Severity: "HIGH", Message: "Process spawn in script"},
	}
}

func defaultVulnerabilityClasses() []ClassSpec {
	return []ClassSpec{
		{Name: "xss", Patterns: []PatternSpec{
			{`innerHTML\s*=`, "HIGH", "CWE-79", "XSS: innerHTML assignment"},
			{`outerHTML\s*=`, "HIGH", "CWE-79", "XSS: outerHTML assignment"},
			{`document\.write\s*\(`, "HIGH", "CWE-79", "XSS: document.write"},
			{`location\.href\s*=`, "MEDIUM", "CWE-79", "XSS: location.href assignment"},
			{`window\.location\s*=`, "MEDIUM", "CWE-79", "XSS: window.location assignment"},
			{`eval\s*\(\s*(?:user|input|param|data)`, "CRITICAL", "CWE-79", "XSS: eval with user input"},
			{`<script>.*</script>`, "HIGH", "CWE-79", "XSS: script tag"},
		}},
		{Name: "sqlInjection", Patterns: []PatternSpec{
			{`(?:SELECT|INSERT|UPDATE|DELETE)\b[^;\n]*['"]\s*\+`, "HIGH", "CWE-89", "SQLi: query built by string concatenation"},
			{`SELECT\s+.*\s+FROM`, "INFO", "CWE-89", "SQL: SELECT statement"},
			{`INSERT\s+.*\s+INTO`, "INFO", "CWE-89", "SQL: INSERT statement"},
			{`DELETE\s+.*\s+FROM`, "INFO", "CWE-89", "SQL: DELETE statement"},
			{`DROP\s+TABLE`, "HIGH", "CWE-89", "SQLi: DROP TABLE"},
			{`UNION\s+SELECT`, "HIGH", "CWE-89", "SQLi: UNION attack"},
			{`OR\s+1\s*=\s*1`, "HIGH", "CWE-89", "SQLi: OR 1=1 tautology"},
			{`'\s+OR\s+'1'\s*=\s*'1`, "HIGH", "CWE-89", "SQLi: classic OR injection"},
		}},
		{Name: "codeInjection", Patterns: []PatternSpec{
			{`eval\s*\(\s*['"].*\$`, "CRITICAL", "CWE-94", "Code Injection: eval with interpolation"},
			{`exec\s*\(\s*['"].*\$`, "CRITICAL", "CWE-94", "Code Injection: exec with interpolation"},
			{`Function\s*\(\s*['"].*\$`, "CRITICAL", "CWE-94", "Code Injection: Function constructor"},
		}},
		{Name: "prototypePollution", Patterns: []PatternSpec{
			{`target\s*\[\s*['"]?\s*__proto__\s*['"]?\s*\]`, "CRITICAL", "CWE-915", "ProtoPollution: __proto__ assignment"},
			{`source\s*\[\s*['"]?\s*__proto__\s*['"]?\s*\]`, "CRITICAL", "CWE-915", "ProtoPollution: __proto__ in source"},
			{`target\s*\.\s*constructor\s*\[`, "CRITICAL", "CWE-915", "ProtoPollution: constructor access"},
			{`Object\.assign\s*\(\s*\{\s*\}\s*,`, "MEDIUM", "CWE-915", "ProtoPollution: unsafe Object.assign"},
			{`for\s*\(.*\s+in\s+.*\)\s*\{\s*[^}]*target\s*\[`, "HIGH", "CWE-915", "ProtoPollution: unsafe for-in merge"},
		}},
		{Name: "sensitiveData", Patterns: []PatternSpec{
			{`api[_-]?key\s*=\s*['"][a-zA-Z0-9_-]{20,}['"]`, "HIGH", "CWE-200", "Secret: API key exposed"},
			{`secret[_-]?token\s*=\s*['"][a-zA-Z0-9_-]{20,}['"]`, "HIGH", "CWE-200", "Secret: token exposed"},
			{`password\s*=\s*['"][^'"]+['"]`, "HIGH", "CWE-259", "Secret: hardcoded password"},
			{`private[_-]?key`, "HIGH", "CWE-200", "Secret: private key reference"},
			{`BEGIN\s+(?:RSA|EC|DSA|OPENSSH)?\s*PRIVATE\s+KEY`, "CRITICAL", "CWE-200", "Secret: private key file"},
			{`process\.env\s*\[\s*['"]\w*(?:API|TOKEN|KEY|SECRET|PASSWORD)\w*['"]\s*\]`, "MEDIUM", "CWE-200", "Secret: environment secret access"},
			{`aws[_-]?access[_-]?key`, "HIGH", "CWE-200", "Secret: AWS credentials"},
			{`github[_-]?token`, "HIGH", "CWE-200", "Secret: GitHub token"},
		}},
		{Name: "cryptoMining", Patterns: []PatternSpec{
			{`coinhive`, "HIGH", "CWE-506", "Crypto mining: coinhive"},
			{`cryptonight`, "HIGH", "CWE-506", "Crypto mining: cryptonight"},
			{`webminer`, "HIGH", "CWE-506", "Crypto mining: webminer"},
			{`nicehash`, "HIGH", "CWE-506", "Crypto mining: nicehash"},
			{`ethash`, "HIGH", "CWE-506", "Crypto mining: ethash"},
		}},
		{Name: "pathTraversal", Patterns: []PatternSpec{
			{`\.\./.*\.js`, "MEDIUM", "CWE-22", "Path: directory traversal"},
			{`require\s*\(\s*['"]\.\./`, "MEDIUM", "CWE-22", "Path: relative require traversal"},
			{"fs\\.readFile\\s*\\(\\s*['\"`]/", "INFO", "CWE-22", "Path: absolute path access"},
			{`__dirname\s*\+\s*['"]/\.\.`, "MEDIUM", "CWE-22", "Path: traversal from __dirname"},
		}},
		{Name: "commandInjection", Patterns: []PatternSpec{
			{"exec\\s*\\(\\s*['\"`]\\s*\\$\\{", "CRITICAL", "CWE-78", "CmdInj: exec with template literal"},
			{"execSync\\s*\\(\\s*['\"`]", "HIGH", "CWE-78", "CmdInj: execSync with inline command"},
			{"spawn\\s*\\(\\s*['\"`].*\\$\\{", "HIGH", "CWE-78", "CmdInj: spawn with interpolated argument"},
		}},
		{Name: "ransomware", Patterns: []PatternSpec{
			{`\bransom\b`, "HIGH", "CWE-506", "Ransomware: ransom wording"},
			{`encrypt.*\.lock`, "HIGH", "CWE-506", "Ransomware: files renamed to .lock after encryption"},
			{`bitcoin.*payment`, "HIGH", "CWE-506", "Ransomware: bitcoin payment demand"},
		}},
	}
}
