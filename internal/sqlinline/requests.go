package sqlinline

const QInsertRequest = `--sql 4c5edaf2-a411-4688-a270-4d5996718504
insert into campaign_requests(campaign_id, idx, id, description, value, recipient, created_at)
values ($1::uuid, $2::int, $3::uuid, $4::text, $5::numeric, $6::text, $7::timestamptz);
`

const QListRequests = `--sql f1378082-436c-4d0c-b6a5-555403a0ebb9
select idx, id::text, description, value::text, recipient, complete, created_at, finalized_at
from campaign_requests
where campaign_id = $1::uuid
order by idx asc;
`

const QListApprovals = `--sql 387ca6a0-866e-4a75-ab5a-17193bb10ca4
select request_idx, approver
from request_approvals
where campaign_id = $1::uuid
order by request_idx asc, approved_at asc;
`

const QInsertApproval = `--sql e43c330a-aeb4-4c00-bf8a-95eea47e3cee
insert into request_approvals(campaign_id, request_idx, approver, approved_at)
values ($1::uuid, $2::int, $3::text, $4::timestamptz)
on conflict (campaign_id, request_idx, approver) do nothing;
`

const QIncrementApprovalCount = `--sql 373cfafd-86a2-4f1f-a0ba-7a032667af1a
update campaign_requests
set approval_count = approval_count + 1
where campaign_id = $1::uuid and idx = $2::int and complete = false;
`

const QCompleteRequest = `--sql 68cec8c5-3c8f-4eff-aad5-32bcdc5bac1a
update campaign_requests
set complete = true, finalized_at = $3::timestamptz
where campaign_id = $1::uuid and idx = $2::int and complete = false;
`

const QSelectApprovalTally = `--sql 9b2e4d71-5c3a-4f08-8e6d-2a71c0f4b913
select r.complete, r.approval_count, c.contributors_count
from campaign_requests r
join campaigns c on c.id = r.campaign_id
where r.campaign_id = $1::uuid and r.idx = $2::int;
`
