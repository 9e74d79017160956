package compliance

// controlMappings binds each check to the framework controls it provides
// evidence for. A check absent from the map still contributes to the
// overall posture score, just not to any framework score.
var controlMappings = map[string][]ControlRef{
	// S3
	"s3_bucket_public_access": {
		{CIS, "2.1.5"}, {PCIDSS, "1.3"}, {HIPAA, "164.312(a)(1)"},
		{SOC2, "CC6.1"}, {ISO27001, "A.8.3"}, {NIST80053, "AC-3"},
		{NISTCSF, "PR.AC-4"}, {LGPD, "Art.46"},
	},
	"s3_bucket_default_encryption": {
		{CIS, "2.1.1"}, {PCIDSS, "3.4"}, {HIPAA, "164.312(a)(2)(iv)"},
		{SOC2, "CC6.7"}, {ISO27001, "A.8.24"}, {NIST80053, "SC-28"},
		{NISTCSF, "PR.DS-1"}, {LGPD, "Art.46"},
	},
	"s3_bucket_versioning": {
		{CIS, "2.1.3"}, {SOC2, "A1.2"}, {NIST80053, "CP-10"}, {NISTCSF, "PR.IP-4"},
	},
	"s3_bucket_access_logging": {
		{CIS, "3.6"}, {PCIDSS, "10.2"}, {SOC2, "CC7.2"},
		{ISO27001, "A.8.15"}, {NIST80053, "AU-2"}, {NISTCSF, "DE.CM-1"},
	},

	// IAM
	"iam_root_mfa_enabled": {
		{CIS, "1.5"}, {PCIDSS, "8.3"}, {HIPAA, "164.312(d)"},
		{SOC2, "CC6.1"}, {ISO27001, "A.5.17"}, {NIST80053, "IA-2(1)"},
		{NISTCSF, "PR.AC-7"}, {LGPD, "Art.46"},
	},
	"iam_root_no_access_keys": {
		{CIS, "1.4"}, {PCIDSS, "8.6"}, {SOC2, "CC6.1"},
		{ISO27001, "A.5.16"}, {NIST80053, "AC-6"}, {NISTCSF, "PR.AC-1"},
	},
	"iam_user_mfa_enabled": {
		{CIS, "1.10"}, {PCIDSS, "8.3"}, {HIPAA, "164.312(d)"},
		{SOC2, "CC6.1"}, {ISO27001, "A.5.17"}, {NIST80053, "IA-2(1)"},
		{NISTCSF, "PR.AC-7"}, {LGPD, "Art.46"},
	},
	"iam_user_access_key_rotation": {
		{CIS, "1.14"}, {PCIDSS, "8.2.4"}, {SOC2, "CC6.1"},
		{ISO27001, "A.5.17"}, {NIST80053, "IA-5"}, {NISTCSF, "PR.AC-1"},
	},
	"iam_password_policy_strength": {
		{CIS, "1.8"}, {PCIDSS, "8.2.3"}, {HIPAA, "164.308(a)(5)"},
		{SOC2, "CC6.1"}, {ISO27001, "A.5.17"}, {NIST80053, "IA-5(1)"},
		{NISTCSF, "PR.AC-1"},
	},

	// EC2 / EBS
	"ec2_instance_imdsv2_required": {
		{CIS, "5.6"}, {NIST80053, "AC-3"}, {NISTCSF, "PR.AC-4"},
	},
	"ec2_instance_no_public_ip": {
		{PCIDSS, "1.3"}, {SOC2, "CC6.6"}, {NIST80053, "SC-7"}, {NISTCSF, "PR.AC-5"},
	},
	"ec2_instance_detailed_monitoring": {
		{SOC2, "CC7.1"}, {NIST80053, "SI-4"}, {NISTCSF, "DE.CM-1"},
	},
	"ec2_ebs_volume_encrypted": {
		{CIS, "2.2.1"}, {PCIDSS, "3.4"}, {HIPAA, "164.312(a)(2)(iv)"},
		{SOC2, "CC6.7"}, {ISO27001, "A.8.24"}, {NIST80053, "SC-28"},
		{NISTCSF, "PR.DS-1"}, {LGPD, "Art.46"},
	},

	// CloudTrail
	"cloudtrail_account_trail_active": {
		{CIS, "3.1"}, {PCIDSS, "10.1"}, {HIPAA, "164.312(b)"},
		{SOC2, "CC7.2"}, {ISO27001, "A.8.15"}, {NIST80053, "AU-2"},
		{NISTCSF, "DE.CM-1"}, {LGPD, "Art.37"},
	},
	"cloudtrail_trail_logging": {
		{CIS, "3.1"}, {PCIDSS, "10.1"}, {SOC2, "CC7.2"},
		{ISO27001, "A.8.15"}, {NIST80053, "AU-12"}, {NISTCSF, "DE.CM-1"},
	},
	"cloudtrail_log_file_validation": {
		{CIS, "3.2"}, {PCIDSS, "10.5"}, {SOC2, "CC7.1"},
		{NIST80053, "AU-9"}, {NISTCSF, "PR.DS-6"},
	},
	"cloudtrail_logs_encrypted": {
		{CIS, "3.5"}, {PCIDSS, "3.4"}, {SOC2, "CC6.7"},
		{NIST80053, "SC-28"}, {NISTCSF, "PR.DS-1"},
	},

	// GuardDuty
	"guardduty_enabled": {
		{CIS, "4.16"}, {PCIDSS, "11.4"}, {HIPAA, "164.308(a)(6)"},
		{SOC2, "CC7.2"}, {ISO27001, "A.8.16"}, {NIST80053, "SI-4"},
		{NISTCSF, "DE.CM-8"}, {LGPD, "Art.48"},
	},

	// VPC
	"vpc_flow_logs_enabled": {
		{CIS, "3.7"}, {PCIDSS, "10.2"}, {SOC2, "CC7.2"},
		{ISO27001, "A.8.15"}, {NIST80053, "AU-2"}, {NISTCSF, "DE.CM-1"},
	},
	"vpc_sg_no_open_ssh": {
		{CIS, "5.2"}, {PCIDSS, "1.2"}, {SOC2, "CC6.6"},
		{ISO27001, "A.8.20"}, {NIST80053, "SC-7"}, {NISTCSF, "PR.AC-5"},
	},
	"vpc_sg_no_open_rdp": {
		{CIS, "5.3"}, {PCIDSS, "1.2"}, {SOC2, "CC6.6"},
		{ISO27001, "A.8.20"}, {NIST80053, "SC-7"}, {NISTCSF, "PR.AC-5"},
	},
	"vpc_default_sg_restricts_traffic": {
		{CIS, "5.4"}, {PCIDSS, "1.2"}, {SOC2, "CC6.6"},
		{NIST80053, "SC-7"}, {NISTCSF, "PR.AC-5"},
	},

	// Config
	"config_recorder_recording": {
		{CIS, "3.3"}, {PCIDSS, "11.5"}, {SOC2, "CC7.1"},
		{ISO27001, "A.8.9"}, {NIST80053, "CM-8"}, {NISTCSF, "DE.CM-1"},
	},

	// RDS
	"rds_storage_encrypted": {
		{CIS, "2.3.1"}, {PCIDSS, "3.4"}, {HIPAA, "164.312(a)(2)(iv)"},
		{SOC2, "CC6.7"}, {ISO27001, "A.8.24"}, {NIST80053, "SC-28"},
		{NISTCSF, "PR.DS-1"}, {LGPD, "Art.46"},
	},
	"rds_not_publicly_accessible": {
		{CIS, "2.3.3"}, {PCIDSS, "1.3"}, {HIPAA, "164.312(a)(1)"},
		{SOC2, "CC6.6"}, {ISO27001, "A.8.20"}, {NIST80053, "SC-7"},
		{NISTCSF, "PR.AC-5"}, {LGPD, "Art.46"},
	},
	"rds_backup_retention": {
		{PCIDSS, "12.10"}, {HIPAA, "164.308(a)(7)"}, {SOC2, "A1.2"},
		{ISO27001, "A.8.13"}, {NIST80053, "CP-9"}, {NISTCSF, "PR.IP-4"},
		{LGPD, "Art.46"},
	},
	"rds_multi_az": {
		{SOC2, "A1.1"}, {NIST80053, "CP-10"}, {NISTCSF, "PR.IP-4"},
	},
	"rds_deletion_protection": {
		{SOC2, "A1.2"}, {NIST80053, "CP-9"}, {NISTCSF, "PR.IP-4"},
	},

	// KMS
	"kms_key_rotation_enabled": {
		{CIS, "3.8"}, {PCIDSS, "3.6.4"}, {SOC2, "CC6.7"},
		{ISO27001, "A.8.24"}, {NIST80053, "SC-12"}, {NISTCSF, "PR.DS-1"},
	},
	"kms_key_not_pending_deletion": {
		{SOC2, "CC6.7"}, {NIST80053, "SC-12"},
	},

	// Lambda
	"lambda_runtime_supported": {
		{PCIDSS, "6.2"}, {SOC2, "CC8.1"}, {ISO27001, "A.8.8"},
		{NIST80053, "SI-2"}, {NISTCSF, "PR.IP-12"},
	},
	"lambda_tracing_enabled": {
		{SOC2, "CC7.1"}, {NIST80053, "AU-2"}, {NISTCSF, "DE.CM-1"},
	},
	"lambda_env_cmk_encrypted": {
		{PCIDSS, "3.4"}, {SOC2, "CC6.7"}, {NIST80053, "SC-28"}, {NISTCSF, "PR.DS-1"},
	},

	// ELB
	"elb_encrypted_listeners_only": {
		{PCIDSS, "4.1"}, {HIPAA, "164.312(e)(1)"}, {SOC2, "CC6.7"},
		{ISO27001, "A.8.24"}, {NIST80053, "SC-8"}, {NISTCSF, "PR.DS-2"},
		{LGPD, "Art.46"},
	},
	"elb_access_logs_enabled": {
		{PCIDSS, "10.2"}, {SOC2, "CC7.2"}, {NIST80053, "AU-2"}, {NISTCSF, "DE.CM-1"},
	},
	"elb_deletion_protection": {
		{SOC2, "A1.2"}, {NIST80053, "CP-9"},
	},

	// DynamoDB
	"dynamodb_pitr_enabled": {
		{HIPAA, "164.308(a)(7)"}, {SOC2, "A1.2"}, {ISO27001, "A.8.13"},
		{NIST80053, "CP-9"}, {NISTCSF, "PR.IP-4"}, {LGPD, "Art.46"},
	},
	"dynamodb_cmk_encrypted": {
		{PCIDSS, "3.4"}, {SOC2, "CC6.7"}, {NIST80053, "SC-28"}, {NISTCSF, "PR.DS-1"},
	},
	"dynamodb_deletion_protection": {
		{SOC2, "A1.2"}, {NIST80053, "CP-9"},
	},

	// SNS / SQS
	"sns_topic_encrypted": {
		{PCIDSS, "3.4"}, {SOC2, "CC6.7"}, {ISO27001, "A.8.24"},
		{NIST80053, "SC-28"}, {NISTCSF, "PR.DS-1"}, {LGPD, "Art.46"},
	},
	"sqs_queue_encrypted": {
		{PCIDSS, "3.4"}, {SOC2, "CC6.7"}, {ISO27001, "A.8.24"},
		{NIST80053, "SC-28"}, {NISTCSF, "PR.DS-1"}, {LGPD, "Art.46"},
	},

	// ElastiCache / Redshift
	"elasticache_encryption_in_transit": {
		{PCIDSS, "4.1"}, {HIPAA, "164.312(e)(1)"}, {SOC2, "CC6.7"},
		{NIST80053, "SC-8"}, {NISTCSF, "PR.DS-2"},
	},
	"elasticache_encryption_at_rest": {
		{PCIDSS, "3.4"}, {HIPAA, "164.312(a)(2)(iv)"}, {SOC2, "CC6.7"},
		{NIST80053, "SC-28"}, {NISTCSF, "PR.DS-1"}, {LGPD, "Art.46"},
	},
	"redshift_cluster_encrypted": {
		{PCIDSS, "3.4"}, {HIPAA, "164.312(a)(2)(iv)"}, {SOC2, "CC6.7"},
		{ISO27001, "A.8.24"}, {NIST80053, "SC-28"}, {NISTCSF, "PR.DS-1"},
		{LGPD, "Art.46"},
	},
	"redshift_cluster_not_public": {
		{PCIDSS, "1.3"}, {SOC2, "CC6.6"}, {NIST80053, "SC-7"},
		{NISTCSF, "PR.AC-5"}, {LGPD, "Art.46"},
	},

	// EKS / ECS / ECR
	"eks_endpoint_not_public": {
		{PCIDSS, "1.3"}, {SOC2, "CC6.6"}, {NIST80053, "SC-7"}, {NISTCSF, "PR.AC-5"},
	},
	"eks_control_plane_logging": {
		{PCIDSS, "10.2"}, {SOC2, "CC7.2"}, {NIST80053, "AU-2"}, {NISTCSF, "DE.CM-1"},
	},
	"eks_secrets_encryption": {
		{PCIDSS, "3.4"}, {SOC2, "CC6.7"}, {NIST80053, "SC-28"}, {NISTCSF, "PR.DS-1"},
	},
	"ecs_container_insights": {
		{SOC2, "CC7.1"}, {NIST80053, "SI-4"}, {NISTCSF, "DE.CM-1"},
	},
	"ecr_scan_on_push": {
		{PCIDSS, "6.1"}, {SOC2, "CC7.1"}, {ISO27001, "A.8.8"},
		{NIST80053, "RA-5"}, {NISTCSF, "DE.CM-8"},
	},
	"ecr_tag_immutability": {
		{SOC2, "CC8.1"}, {NIST80053, "CM-5"}, {NISTCSF, "PR.DS-6"},
	},

	// Secrets Manager
	"secretsmanager_rotation_enabled": {
		{PCIDSS, "8.2.4"}, {SOC2, "CC6.1"}, {ISO27001, "A.5.17"},
		{NIST80053, "IA-5"}, {NISTCSF, "PR.AC-1"}, {LGPD, "Art.46"},
	},

	// CloudFront
	"cloudfront_viewer_https": {
		{PCIDSS, "4.1"}, {HIPAA, "164.312(e)(1)"}, {SOC2, "CC6.7"},
		{NIST80053, "SC-8"}, {NISTCSF, "PR.DS-2"}, {LGPD, "Art.46"},
	},
	"cloudfront_waf_associated": {
		{PCIDSS, "6.6"}, {SOC2, "CC6.6"}, {NIST80053, "SC-7"}, {NISTCSF, "PR.PT-4"},
	},

	// API Gateway
	"apigateway_stage_logging": {
		{PCIDSS, "10.2"}, {SOC2, "CC7.2"}, {NIST80053, "AU-2"}, {NISTCSF, "DE.CM-1"},
	},
	"apigateway_stage_tracing": {
		{SOC2, "CC7.1"}, {NIST80053, "AU-2"},
	},

	// CloudWatch
	"cloudwatch_alarm_actions_enabled": {
		{CIS, "4.1"}, {SOC2, "CC7.2"}, {NIST80053, "SI-4(5)"}, {NISTCSF, "DE.AE-5"},
	},

	// Route 53
	"route53_query_logging": {
		{SOC2, "CC7.2"}, {NIST80053, "AU-2"}, {NISTCSF, "DE.CM-1"},
	},

	// WAF
	"wafv2_web_acl_has_rules": {
		{PCIDSS, "6.6"}, {SOC2, "CC6.6"}, {NIST80053, "SC-7"}, {NISTCSF, "PR.PT-4"},
	},

	// Auto Scaling
	"autoscaling_multi_az": {
		{SOC2, "A1.1"}, {NIST80053, "CP-10"}, {NISTCSF, "PR.IP-4"},
	},
	"autoscaling_elb_health_check": {
		{SOC2, "A1.1"}, {NIST80053, "CP-10"},
	},

	// CloudFormation
	"cloudformation_termination_protection": {
		{SOC2, "A1.2"}, {NIST80053, "CM-5"},
	},

	// SSM
	"ssm_instance_online": {
		{SOC2, "CC7.1"}, {ISO27001, "A.8.9"}, {NIST80053, "CM-8"}, {NISTCSF, "DE.CM-1"},
	},
	"ssm_agent_current": {
		{PCIDSS, "6.2"}, {SOC2, "CC8.1"}, {NIST80053, "SI-2"}, {NISTCSF, "PR.IP-12"},
	},

	// Cost Explorer
	"cost_anomaly_monitor_configured": {
		{SOC2, "CC7.2"}, {NISTCSF, "DE.AE-1"},
	},
}

// Controls returns the framework controls mapped to a check ID.
func Controls(checkID string) []ControlRef {
	return controlMappings[checkID]
}
